package luart

import "errors"

// Errors for runtime operations.
var (
	// ErrRuntimeClosed is returned when operating on a closed runtime.
	ErrRuntimeClosed = errors.New("lua runtime is closed")

	// ErrInterrupted is returned when a chunk was cancelled through
	// Interrupt.
	ErrInterrupted = errors.New("interrupted!")
)
