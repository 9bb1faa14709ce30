package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeSender records sends and can fail specific chunks.
type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	failAt map[int]bool // 0-based index of calls to fail
	calls  int
}

func (f *fakeSender) SendText(ctx context.Context, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if f.failAt[idx] {
		return fmt.Errorf("send rejected")
	}
	f.sent = append(f.sent, text)
	return nil
}

// --- CleanText ---

func TestCleanText_Bold(t *testing.T) {
	got := CleanText("**Hi!**")
	if got != "Hi!" {
		t.Errorf("expected Hi!, got %q", got)
	}
}

func TestCleanText_Citation(t *testing.T) {
	got := CleanText("See the docs【4:2†source】 for details")
	if got != "See the docs for details" {
		t.Errorf("unexpected: %q", got)
	}
}

func TestCleanText_Heading(t *testing.T) {
	got := CleanText("### Opening hours\nWe open at 9.")
	if got != "Opening hours\nWe open at 9." {
		t.Errorf("unexpected: %q", got)
	}
}

func TestCleanText_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"**bold** and **more bold**",
		"### Heading with 【1†source】 citation",
		"  padded  ",
	}
	for _, in := range inputs {
		once := CleanText(in)
		twice := CleanText(once)
		if once != twice {
			t.Errorf("CleanText not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

// --- chunkText ---

func TestChunkText_Empty(t *testing.T) {
	if chunks := chunkText("", 1000); len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestChunkText_ExactBoundary(t *testing.T) {
	chunks := chunkText(strings.Repeat("a", 1000), 1000)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestChunkText_OneOver(t *testing.T) {
	chunks := chunkText(strings.Repeat("a", 1001), 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1000 || len(chunks[1]) != 1 {
		t.Errorf("expected sizes 1000 and 1, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
}

func TestChunkText_MultiByteRunes(t *testing.T) {
	// 3-byte runes: a byte-counting split would land mid-character.
	text := strings.Repeat("€", 1500)
	chunks := chunkText(text, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 1000 {
		t.Errorf("expected 1000 characters in first chunk, got %d", n)
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 500 {
		t.Errorf("expected 500 characters in second chunk, got %d", n)
	}
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks should reproduce the input")
	}
}

func TestChunkText_MultiByteExactBoundary(t *testing.T) {
	// 1002 bytes but only 334 characters: must stay a single chunk.
	chunks := chunkText(strings.Repeat("€", 334), 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !utf8.ValidString(chunks[0]) {
		t.Error("chunk is not valid UTF-8")
	}
}

func TestChunkText_ConcatenationRoundTrip(t *testing.T) {
	text := strings.Repeat("0123456789", 357)
	chunks := chunkText(text, 1000)
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks should reproduce the input")
	}
}

// --- Dispatch ---

func TestDispatch_OrderPreserved(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 3, testLogger())

	_, n := d.Dispatch(context.Background(), "user1", "abcdefgh")
	if n != 3 {
		t.Fatalf("expected 3 chunks, got %d", n)
	}
	want := []string{"abc", "def", "gh"}
	for i, w := range want {
		if sender.sent[i] != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, sender.sent[i])
		}
	}
}

func TestDispatch_FailedChunkDoesNotBlockRest(t *testing.T) {
	sender := &fakeSender{failAt: map[int]bool{0: true}}
	d := NewDispatcher(sender, 3, testLogger())

	_, n := d.Dispatch(context.Background(), "user1", "abcdef")
	if n != 2 {
		t.Fatalf("expected 2 chunks attempted, got %d", n)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "def" {
		t.Errorf("expected second chunk delivered, got %v", sender.sent)
	}
}

func TestDispatch_EmptyReply(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1000, testLogger())

	_, n := d.Dispatch(context.Background(), "user1", "")
	if n != 0 {
		t.Errorf("expected 0 chunks, got %d", n)
	}
	if sender.calls != 0 {
		t.Errorf("expected 0 delivery calls, got %d", sender.calls)
	}
}

func TestDispatch_CleansBeforeChunking(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1000, testLogger())

	cleaned, n := d.Dispatch(context.Background(), "user1", "**Hi!**")
	if cleaned != "Hi!" {
		t.Errorf("expected cleaned text Hi!, got %q", cleaned)
	}
	if n != 1 || sender.sent[0] != "Hi!" {
		t.Errorf("expected 1 chunk Hi!, got %d %v", n, sender.sent)
	}
}
