package signal

import "errors"

// Errors for registration and disposition operations.
var (
	// ErrInvalidSignal is returned for a signal number outside the
	// accepted range.
	ErrInvalidSignal = errors.New("invalid signal number")

	// ErrUncatchable is returned when the platform forbids trapping
	// the signal (SIGKILL, SIGSTOP).
	ErrUncatchable = errors.New("signal cannot be caught")

	// ErrCaptureClosed is returned when operating on closed capture.
	ErrCaptureClosed = errors.New("signal capture is closed")
)

// DispositionError reports a failed OS disposition change. Registration
// state is left unchanged when it is returned.
type DispositionError struct {
	Op     string // "handle", "ignore" or "reset"
	Signum int
	Err    error
}

func (e *DispositionError) Error() string {
	return "failed to " + e.Op + " " + Name(e.Signum) + ": " + e.Err.Error()
}

func (e *DispositionError) Unwrap() error {
	return e.Err
}
