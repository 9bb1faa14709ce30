package relay

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestMarkSeen_FirstTime(t *testing.T) {
	s := NewState()
	if !s.MarkSeen("m1") {
		t.Error("first MarkSeen should report new")
	}
	if s.MarkSeen("m1") {
		t.Error("second MarkSeen should report already seen")
	}
}

func TestMarkSeen_NeverRemoved(t *testing.T) {
	s := NewState()
	s.MarkSeen("m1")
	s.DropCorrelation("m1") // unrelated table, ledger must be untouched
	if !s.Seen("m1") {
		t.Error("ledger entry should survive")
	}
}

func TestMarkSeen_Concurrent(t *testing.T) {
	s := NewState()
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkSeen("m1") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
}

func TestThreadDirectory(t *testing.T) {
	s := NewState()
	if _, ok := s.Thread("sender1"); ok {
		t.Error("unknown sender should have no thread")
	}
	s.PutThread("sender1", "thread_a")
	id, ok := s.Thread("sender1")
	if !ok || id != "thread_a" {
		t.Errorf("expected thread_a, got %q (ok=%v)", id, ok)
	}
	if s.ThreadCount() != 1 {
		t.Errorf("expected 1 thread, got %d", s.ThreadCount())
	}
}

func TestCorrelations_AppendAndDrop(t *testing.T) {
	s := NewState()
	if _, ok := s.Correlations("m1"); ok {
		t.Error("unknown mid should have no correlation")
	}

	s.Correlate("m1", "omsg_1")
	s.Correlate("m1", "omsg_2")
	refs, ok := s.Correlations("m1")
	if !ok || len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v (ok=%v)", refs, ok)
	}
	if refs[0] != "omsg_1" || refs[1] != "omsg_2" {
		t.Errorf("refs out of order: %v", refs)
	}

	s.DropCorrelation("m1")
	if _, ok := s.Correlations("m1"); ok {
		t.Error("dropped correlation should be gone")
	}
}
