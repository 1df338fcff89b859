package engine

import "errors"

var (
	// ErrNotRunning is returned when an operation requires a running
	// container and the engine reports it is not.
	ErrNotRunning = errors.New("container is not running")

	// ErrPortNotExposed is returned when a caller asks for the host
	// binding of a port the container never declared exposed. This is a
	// programming error in the caller, not a transient condition.
	ErrPortNotExposed = errors.New("port was not exposed at creation time")
)
