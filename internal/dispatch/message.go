// Package dispatch runs route searches on a background worker and falls back
// to inline execution when the worker fails or stays silent.
package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/starnav/internal/navigation"
)

// Request asks a worker for one route. It is a plain value so a Worker may
// serialize it across any boundary.
type Request struct {
	ID            uuid.UUID     `json:"id"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	MaxJump       float64       `json:"max_jump"`
	MaxIterations int           `json:"max_iterations"`
	TimeLimit     time.Duration `json:"time_limit"`
	// WantProgress asks the worker to stream Progress responses.
	WantProgress bool `json:"want_progress,omitempty"`
}

// Response answers the Request with the same ID. Exactly one of Result, Err
// and Failure is set on a final response; Progress responses carry only
// Progress and are never final.
type Response struct {
	ID       uuid.UUID            `json:"id"`
	Result   *navigation.Result   `json:"result,omitempty"`
	Err      *navigation.Error    `json:"error,omitempty"`
	Failure  string               `json:"failure,omitempty"`
	Progress *navigation.Progress `json:"progress,omitempty"`
}

// Final reports whether r resolves its request.
func (r Response) Final() bool {
	return r.Progress == nil
}

func (r Request) limits() navigation.Limits {
	return navigation.Limits{MaxIterations: r.MaxIterations, TimeLimit: r.TimeLimit}
}
