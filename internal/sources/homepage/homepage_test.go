package homepage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sample = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - href: https://go.dev
- Social:
    - Private:
        - href: {{HOMEPAGE_VAR_PRIVATE_URL}}
    - Reddit:
        - icon: reddit.png
          href: https://reddit.com/
`

func TestLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	config, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(config) != 2 {
		t.Fatalf("Load() returned %d groups, want 2", len(config))
	}
}

func TestLoaderMissingFile(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load(); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("- [unclosed")); err == nil {
		t.Fatal("Parse() of invalid yaml succeeded")
	}
}

func TestMap(t *testing.T) {
	config, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got, err := Map(config, "alice")
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	want := map[string]string{
		"Github": "https://github.com/",
		"Go":     "https://go.dev",
		"Reddit": "https://reddit.com/",
	}
	if len(got) != len(want) {
		t.Fatalf("Map() returned %d bookmarks, want %d: %+v", len(got), len(want), got)
	}
	for _, nb := range got {
		if nb.OwnerID != "alice" {
			t.Errorf("%s owner = %q, want alice", nb.Title, nb.OwnerID)
		}
		if want[nb.Title] != nb.URL {
			t.Errorf("%s url = %q, want %q", nb.Title, nb.URL, want[nb.Title])
		}
	}
}

func TestMapEmpty(t *testing.T) {
	config, _ := Parse([]byte("- Empty:\n    - Nothing:\n        - href: \"\"\n"))
	if _, err := Map(config, "alice"); !errors.Is(err, ErrNoBookmarks) {
		t.Fatalf("Map() error = %v, want ErrNoBookmarks", err)
	}
}
