package history

import "sync/atomic"

// Sequencer hands out monotonically increasing request ids. Only the most
// recently issued id may apply its result.
type Sequencer struct {
	latest atomic.Uint64
}

// Issue tags a new request and makes it the latest.
func (s *Sequencer) Issue() uint64 {
	return s.latest.Add(1)
}

// IsLatest reports whether id is still the newest issued request.
func (s *Sequencer) IsLatest(id uint64) bool {
	return s.latest.Load() == id
}

// Latest returns the newest issued id, or 0 before the first Issue.
func (s *Sequencer) Latest() uint64 {
	return s.latest.Load()
}
