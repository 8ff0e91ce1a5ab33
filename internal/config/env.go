package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment readers. A variable that is set but malformed is fatal,
// an unset one falls back to def.

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid value %q for %s: %v", v, key, err))
	}
	return out
}

func mustInt(key string, def int) int {
	return parseEnv(key, def, strconv.Atoi)
}

func mustBool(key string, def bool) bool {
	return parseEnv(key, def, strconv.ParseBool)
}

func mustDuration(key string, def time.Duration) time.Duration {
	return parseEnv(key, def, time.ParseDuration)
}

// splitAndTrim splits a comma separated list, dropping blanks and quotes.
func splitAndTrim(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.Trim(strings.TrimSpace(part), `"'`); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
