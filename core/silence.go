package orchestration

import (
	"sync"
	"time"
)

// silenceTimer fires once after the configured delay unless it is rearmed or
// stopped first. Every arm starts a new generation so a fire that was already
// in flight when the timer was stopped can be told apart and ignored.
type silenceTimer struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

func (s *silenceTimer) arm(delay time.Duration, fire func(generation uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	generation := s.generation
	s.timer = time.AfterFunc(delay, func() { fire(generation) })
}

func (s *silenceTimer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}

func (s *silenceTimer) isCurrent(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && s.generation == generation
}

func (s *silenceTimer) armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
