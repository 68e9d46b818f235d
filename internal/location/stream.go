package location

import (
	"sync"

	"github.com/roach88/geonudge/internal/model"
)

// StreamBuffer is the channel capacity of every source.
const StreamBuffer = 64

// stream owns the current subscription channel and profile.
type stream struct {
	mu      sync.Mutex
	ch      chan model.Sample
	profile model.Profile
	dropped int
}

func (s *stream) open(p model.Profile) <-chan model.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
	}
	s.ch = make(chan model.Sample, StreamBuffer)
	s.profile = p
	return s.ch
}

// close reports whether a subscription was open.
func (s *stream) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return false
	}
	close(s.ch)
	s.ch = nil
	return true
}

// send delivers without blocking. ok is false when nothing is subscribed;
// full is true when the buffer overflowed and the sample was dropped.
func (s *stream) send(sample model.Sample) (ok, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return false, false
	}
	select {
	case s.ch <- sample:
		return true, false
	default:
		s.dropped++
		return true, true
	}
}

func (s *stream) current() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.ch != nil
}

func (s *stream) droppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
