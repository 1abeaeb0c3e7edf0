package navigation

import (
	"errors"
	"fmt"
)

// Reason tags why a navigation request failed or stopped early.
type Reason string

const (
	ReasonNodeNotFound   Reason = "NodeNotFound"
	ReasonInvalidRange   Reason = "InvalidRange"
	ReasonIterationLimit Reason = "IterationLimitExceeded"
	ReasonTimeLimit      Reason = "TimeLimitExceeded"
	ReasonNoPath         Reason = "NoPathExists"
	ReasonCanceled       Reason = "Canceled"
)

// Error is the typed failure returned by FindPath and MinimumRange. It is a
// plain value so it can cross a worker boundary unchanged.
type Error struct {
	Op     string `json:"op"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Sentinels for errors.Is. They match any *Error with the same Reason.
var (
	ErrNodeNotFound   = &Error{Reason: ReasonNodeNotFound}
	ErrInvalidRange   = &Error{Reason: ReasonInvalidRange}
	ErrIterationLimit = &Error{Reason: ReasonIterationLimit}
	ErrTimeLimit      = &Error{Reason: ReasonTimeLimit}
	ErrNoPath         = &Error{Reason: ReasonNoPath}
	ErrCanceled       = &Error{Reason: ReasonCanceled}
)

const (
	opFindPath     = "find path"
	opMinimumRange = "find minimum range"
)

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches on Reason so callers can use the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// Remedy is a short user-facing hint for the failure.
func (e *Error) Remedy() string {
	switch e.Reason {
	case ReasonNodeNotFound:
		return "select start and end stars from the loaded catalogue"
	case ReasonInvalidRange:
		return "specify a positive jump range"
	case ReasonNoPath:
		return "increase the jump range"
	case ReasonIterationLimit, ReasonTimeLimit:
		return "reduce the search scope or increase the jump range"
	default:
		return ""
	}
}

// ReasonOf extracts the Reason from err, or "" when err is not an *Error.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func newError(op string, reason Reason, format string, args ...any) *Error {
	return &Error{Op: op, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
