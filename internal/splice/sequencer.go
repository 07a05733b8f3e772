package splice

import "sync"

// EventID identifies a splice event within a single process run. Zero is
// reserved and never allocated.
type EventID uint32

// Sequencer hands out strictly increasing event identifiers starting at 1.
// It is safe for concurrent use by the event loop and timer callbacks.
type Sequencer struct {
	mu   sync.Mutex
	last EventID
}

// NewSequencer returns a sequencer whose first allocation is 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next allocates the next identifier.
func (s *Sequencer) Next() EventID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Last returns the most recently allocated identifier, or 0 if none.
func (s *Sequencer) Last() EventID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
