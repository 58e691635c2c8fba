package clock

import (
	"time"

	"github.com/mcoot/gamebank/internal/model"
)

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Sequencer issues ledger stamps from a Clock, keeping them strictly
// monotonic even when the wall clock stalls or steps backwards.
// It is not safe for concurrent use; the owning store serializes access.
type Sequencer struct {
	clock Clock
	last  model.Stamp
}

// NewSequencer creates a Sequencer reading from the given clock
func NewSequencer(c Clock) *Sequencer {
	return &Sequencer{clock: c}
}

// Next returns the stamp for a new mutation
func (s *Sequencer) Next() model.Stamp {
	s.last = model.NextStamp(s.last, s.clock.Now())
	return s.last
}

// Watermark reserves and returns a watermark for a reader
func (s *Sequencer) Watermark() model.Stamp {
	s.last = model.WatermarkStamp(s.last, s.clock.Now())
	return s.last
}

// Last returns the most recently issued stamp
func (s *Sequencer) Last() model.Stamp {
	return s.last
}
