package core

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	valid := map[string]string{
		"snapshots/2025/a.json":   "snapshots/2025/a.json",
		" snapshots//latest.json": "snapshots/latest.json",
		"a/./b":                   "a/b",
	}
	for in, want := range valid {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "  ", "/abs", "../up", "a/../../b", "a\\b", "."} {
		if _, err := CleanKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", in, err)
		}
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil metadata should stay nil")
	}
	in := map[string]string{"k": "v"}
	out := CloneMetadata(in)
	out["k"] = "changed"
	if in["k"] != "v" {
		t.Fatalf("clone aliases input")
	}
}
