package relay

import "sync"

// State holds the relay's process-lifetime maps: the dedup ledger, the
// sender-to-thread directory, and the inbound-to-backend message correlation
// table. All three start empty at process start and are never persisted;
// losing them on restart is accepted.
type State struct {
	mu           sync.RWMutex
	seen         map[string]struct{} // dedup ledger, grows monotonically
	threads      map[string]string   // sender id -> backend thread id
	correlations map[string][]string // inbound mid -> backend message ids
}

func NewState() *State {
	return &State{
		seen:         make(map[string]struct{}),
		threads:      make(map[string]string),
		correlations: make(map[string][]string),
	}
}

// MarkSeen records id in the dedup ledger and reports whether it was new.
// Check and insert are a single atomic step, so a duplicate delivered while
// the first copy is still in flight is rejected.
func (s *State) MarkSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Seen reports whether id is in the dedup ledger.
func (s *State) Seen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

// Thread returns the thread mapped to sender, if any.
func (s *State) Thread(senderID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.threads[senderID]
	return id, ok
}

// PutThread maps sender to threadID. Entries are never removed.
func (s *State) PutThread(senderID, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[senderID] = threadID
}

// ThreadCount returns the number of senders with a live thread.
func (s *State) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// Correlate links an inbound message id to a backend message id. Appending
// rather than overwriting keeps insertion consistent with the plural
// handling on retraction.
func (s *State) Correlate(messageID, backendID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlations[messageID] = append(s.correlations[messageID], backendID)
}

// Correlations returns the backend message ids linked to messageID.
func (s *State) Correlations(messageID string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs, ok := s.correlations[messageID]
	if !ok {
		return nil, false
	}
	out := make([]string, len(refs))
	copy(out, refs)
	return out, true
}

// DropCorrelation removes the correlation entry for messageID.
func (s *State) DropCorrelation(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.correlations, messageID)
}
