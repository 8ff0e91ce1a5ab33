package logger

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"fatal", false},
		{"verbose", false},
		{"", true}, // zapcore treats "" as info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if (got != nil) != tt.valid {
				t.Errorf("parseLevel(%q) = %v, want valid=%v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestWithReturnsChild(t *testing.T) {
	log := New("error", false)
	child := log.With(String("component", "test"))
	if child == nil || child == log {
		t.Fatal("With() should return a distinct logger")
	}
	child.Info("discarded at error level")
}
