package alerts

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateAlert_ShortPassesThrough(t *testing.T) {
	if got := truncateAlert("relay error"); got != "relay error" {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestTruncateAlert_CutsOnCharacterBoundary(t *testing.T) {
	// 3-byte runes well past the limit: a byte cut would split one.
	text := strings.Repeat("€", maxAlertLen+100)
	got := truncateAlert(text)
	if !utf8.ValidString(got) {
		t.Error("truncated alert is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxAlertLen {
		t.Errorf("expected %d characters, got %d", maxAlertLen, n)
	}
}
