package player

import (
	"errors"
	"fmt"
)

var (
	// ErrNoURL is returned by Play when neither the argument nor the
	// options carry a stream URL.
	ErrNoURL = errors.New("player: no stream url")
	// ErrDestroyed is returned by lifecycle calls after Destroy.
	ErrDestroyed = errors.New("player: destroyed")
	// ErrClosed is returned by an in-flight Init or Play whose session was
	// closed underneath it.
	ErrClosed = errors.New("player: session closed")
)

// TransportErrorKind tells fetch failures from socket failures.
type TransportErrorKind string

const (
	TransportFetch  TransportErrorKind = "fetch"
	TransportSocket TransportErrorKind = "socket"
)

// TransportError is returned by Play when the transport reports a failure
// before the stream starts.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("player: %s error", e.Kind)
	}
	return fmt.Sprintf("player: %s error: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
