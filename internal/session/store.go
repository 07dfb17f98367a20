package session

import "sync"

// conversation is the per-id state. exchange serializes whole
// read-invoke-append sequences; turns is guarded by the Store's mutex.
type conversation struct {
	exchange sync.Mutex
	turns    []Turn
}

// Store holds bounded conversation history keyed by session id.
//
// Two levels of locking are used. The store mutex only guards the map and
// the turn slices and is never held across a backend call. Each session
// additionally owns an exchange lock, taken with Acquire, so that callers
// can make a read-modify-write sequence atomic for that one id without
// blocking any other id.
type Store struct {
	mu       sync.RWMutex
	window   int
	sessions map[string]*conversation
}

// NewStore creates a store that keeps at most window turns per session.
// A window below 1 falls back to DefaultWindow.
func NewStore(window int) *Store {
	if window < 1 {
		window = DefaultWindow
	}
	return &Store{
		window:   window,
		sessions: make(map[string]*conversation),
	}
}

// Window returns the per-session turn bound
func (s *Store) Window() int {
	return s.window
}

// conversation returns the state for id, creating it on first use
func (s *Store) conversation(id string) *conversation {
	s.mu.RLock()
	c, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.sessions[id]; ok {
		return c
	}
	c = &conversation{}
	s.sessions[id] = c
	return c
}

// Acquire takes the exchange lock for id and returns the function that
// releases it. Calls for the same id are serialized; calls for different
// ids never wait on each other.
func (s *Store) Acquire(id string) func() {
	c := s.conversation(id)
	c.exchange.Lock()
	return c.exchange.Unlock
}

// History returns a copy of the turns recorded for id, oldest first.
// An unseen id yields an empty slice.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[id]
	if !ok {
		return []Turn{}
	}
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Append adds turns to id and drops the oldest turns beyond the window
func (s *Store) Append(id string, turns ...Turn) {
	c := s.conversation(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := append(c.turns, turns...)
	if over := len(merged) - s.window; over > 0 {
		merged = merged[over:]
	}
	// copy so the evicted prefix is not pinned by the backing array
	c.turns = append(make([]Turn, 0, len(merged)), merged...)
}

// Len returns the number of turns held for id
func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.sessions[id]; ok {
		return len(c.turns)
	}
	return 0
}

// Count returns the number of sessions seen so far
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
