package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConnection marks errors caused by a lost connection to a node
	ErrConnection = errors.New("connection error")
	// ErrRaceStalled is returned when a submitted transaction is not resolved within the stall timeout
	ErrRaceStalled = errors.New("race has stalled")
	// ErrProtocolInvariantViolated is returned when a race task finishes without an error
	ErrProtocolInvariantViolated = errors.New("protocol invariant violated")
	// ErrInvalidParams is returned for an unusable loop configuration
	ErrInvalidParams = errors.New("invalid params")
)

// connectionErrorClassifier is implemented by client errors that classify themselves
type connectionErrorClassifier interface {
	IsConnectionError() bool
}

// NewConnectionError marks err as a connection error
func NewConnectionError(err error) error {
	return errors.Mark(err, ErrConnection)
}

// IsConnectionError reports whether err is caused by a lost connection to a node
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) {
		return true
	}
	var c connectionErrorClassifier
	if errors.As(err, &c) {
		return c.IsConnectionError()
	}
	return false
}

// FailedClient names the side whose client has to be reconnected
type FailedClient int

const (
	FailedClientSource FailedClient = iota + 1
	FailedClientTarget
	FailedClientBoth
)

func (f FailedClient) String() string {
	switch f {
	case FailedClientSource:
		return "source"
	case FailedClientTarget:
		return "target"
	case FailedClientBoth:
		return "both"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// LoopError is returned by Run when the loop invocation has ended because of a failure
type LoopError struct {
	Failed FailedClient
	Err    error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("message lane loop failed (%v client): %v", e.Failed, e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}
