package fetcher

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrRateLimited  = errors.New("rate limited")
	ErrServerError  = errors.New("server error")
	ErrTimeout      = errors.New("request timed out")
	ErrUnreachable  = errors.New("host unreachable")
	ErrUnexpected   = errors.New("unexpected status")
)

// Error describes a failed fetch. Kind is one of the sentinel errors above.
type Error struct {
	URL    string
	Status int
	Kind   error
	Err    error

	retryAfter time.Duration
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// terminal reports whether no further attempt against the host can succeed
func terminal(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrRateLimited)
}
