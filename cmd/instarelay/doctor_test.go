package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 80); got != "short" {
		t.Errorf("expected unchanged text, got %q", got)
	}
	if got := truncate(strings.Repeat("a", 100), 80); got != strings.Repeat("a", 80)+"..." {
		t.Errorf("unexpected truncation: %q", got)
	}
}

func TestTruncate_CutsOnCharacterBoundary(t *testing.T) {
	got := truncate(strings.Repeat("€", 100), 80)
	if !utf8.ValidString(got) {
		t.Error("truncated text is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != 83 {
		t.Errorf("expected 80 characters plus ellipsis, got %d", n)
	}
}
