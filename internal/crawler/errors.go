package crawler

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionClosed is returned by every operation on a closed Browser.
var ErrSessionClosed = errors.New("browser session is closed")

// NavigationError reports a failed or timed-out page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// EvaluationError reports an exception thrown by, or a decode failure of, an
// in-page query.
type EvaluationError struct {
	Query string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Query, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ActionTimeoutError reports a hover or click that could not reach its
// target within the action timeout, usually because the locator is stale.
type ActionTimeoutError struct {
	Action  string
	Locator string
	Timeout time.Duration
	Err     error
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("%s on %s failed within %v: %v", e.Action, e.Locator, e.Timeout, e.Err)
}

func (e *ActionTimeoutError) Unwrap() error { return e.Err }
