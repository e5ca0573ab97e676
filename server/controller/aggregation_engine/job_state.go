package aggregation_engine

import (
	"errors"
	"sync"
)

// ErrAlreadyComplete is returned when completion is triggered a second time
var ErrAlreadyComplete = errors.New("job already completed")

// Phase is the lifecycle position of the single aggregation job
type Phase int

const (
	Collecting Phase = iota
	Completing
	Done
)

func (p Phase) String() string {
	switch p {
	case Collecting:
		return "collecting"
	case Completing:
		return "completing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// JobState owns the completion flag shared by the consumer and every receive task.
// Reads and the set-once transitions go through the same lock.
type JobState struct {
	mutex sync.RWMutex
	phase Phase
	err   error
	done  chan struct{}
}

// NewJobState creates a state in the Collecting phase
func NewJobState() *JobState {
	return &JobState{done: make(chan struct{})}
}

// IsComplete reports whether completion has been triggered. Receive tasks stop
// reading once this is true.
func (s *JobState) IsComplete() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.phase != Collecting
}

// Phase returns the current phase
func (s *JobState) Phase() Phase {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.phase
}

// BeginCompletion moves Collecting to Completing. Only the first caller gets true.
func (s *JobState) BeginCompletion() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.phase != Collecting {
		return false
	}
	s.phase = Completing
	return true
}

// Finish moves the job to Done, recording the handoff outcome. Later calls are ignored.
func (s *JobState) Finish(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.phase == Done {
		return
	}
	s.phase = Done
	s.err = err
	close(s.done)
}

// Done is closed once the job reaches Done
func (s *JobState) Done() <-chan struct{} {
	return s.done
}

// Err returns the outcome recorded by Finish
func (s *JobState) Err() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.err
}
