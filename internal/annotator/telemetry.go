package annotator

import (
	"time"

	"github.com/google/uuid"
)

// Session counts committed review actions since start and derives a
// throughput for display. It never gates anything.
type Session struct {
	ID        string
	Start     time.Time
	Committed int

	elapsed    time.Duration
	throughput float64
}

func NewSession(start time.Time) *Session {
	return &Session{ID: uuid.NewString(), Start: start}
}

// Add counts n committed actions.
func (s *Session) Add(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.Committed += n
}

// OnTick recomputes elapsed time and throughput. Call once per second.
func (s *Session) OnTick(now time.Time) {
	if s == nil {
		return
	}
	s.elapsed = now.Sub(s.Start)
	if s.elapsed <= 0 {
		s.elapsed = 0
		s.throughput = 0
		return
	}
	s.throughput = float64(s.Committed) / s.elapsed.Hours()
}

func (s *Session) Elapsed() time.Duration { return s.elapsed }

// Throughput is committed actions per hour as of the last tick.
func (s *Session) Throughput() float64 { return s.throughput }
