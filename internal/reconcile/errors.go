package reconcile

import (
	"errors"
	"fmt"

	"volunteer-attendance/internal/ticketing"
)

var ErrRunInProgress = errors.New("a sync run is already in progress")

// sourceError marks a failure reading attendees of one session. Unless it
// is an authentication failure the run goes on with the next session.
type sourceError struct {
	eventID string
	err     error
}

func (e *sourceError) Error() string {
	return fmt.Sprintf("failed to fetch attendees of event %s: %v", e.eventID, e.err)
}

func (e *sourceError) Unwrap() error { return e.err }

// recoverable reports whether err only affects the session it came from.
func recoverable(err error) bool {
	var se *sourceError
	return errors.As(err, &se) && !errors.Is(err, ticketing.ErrUnauthorized)
}
