// Package jobs tracks asynchronous analysis and render jobs running on
// external services.
package jobs

import (
	"errors"
	"time"
)

type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindRender   Kind = "render"
)

type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

var (
	ErrTimedOut  = errors.New("job polling timed out; the external job's outcome is unknown")
	ErrCancelled = errors.New("job cancelled")
	ErrJobLost   = errors.New("job no longer known to the service")
	ErrNoJob     = errors.New("no job in progress")
	ErrFailed    = errors.New("job failed")
)

// RemoteState is the status vocabulary reported by the external services.
type RemoteState string

const (
	RemotePending    RemoteState = "pending"
	RemoteProcessing RemoteState = "processing"
	RemoteCompleted  RemoteState = "completed"
	RemoteFailed     RemoteState = "failed"
	RemoteCancelled  RemoteState = "cancelled"
	RemoteNotFound   RemoteState = "not_found"
)

// Remote is one status observation from the external service.
type Remote struct {
	State    RemoteState
	Progress int
	Message  string
	URL      string
}

type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Project   string    `json:"project"`
	State     State     `json:"state"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	URL       string    `json:"url,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
