package live

import (
	"sync"
	"time"
)

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// Scheduler assigns gapless playback start times to a stream of audio
// chunks. Each chunk starts at the later of "now" and the end of the
// previously scheduled chunk, so bursts of short fragments play back to
// back without overlap and a lull in the stream does not schedule audio
// in the past.
type Scheduler struct {
	now Clock

	mu        sync.Mutex
	nextStart time.Time
}

// NewScheduler returns a Scheduler driven by the given clock. A nil
// clock uses time.Now.
func NewScheduler(now Clock) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{now: now}
}

// Schedule reserves a playback slot for a chunk of duration d and
// returns its start time. The internal cursor advances by d.
func (s *Scheduler) Schedule(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.now(); s.nextStart.Before(now) {
		s.nextStart = now
	}
	start := s.nextStart
	s.nextStart = start.Add(d)
	return start
}

// Interrupt discards the reserved timeline. The next chunk scheduled
// after an interruption starts immediately rather than after audio that
// will never play.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStart = s.now()
}

// NextStart reports when the next scheduled chunk would begin.
func (s *Scheduler) NextStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
