package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors classifying backend failures. Callers match them with
// errors.Is; the wrapped error carries the underlying cause.
var (
	// ErrUnreachable indicates the backend could not be connected to.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrTimeout indicates the backend did not answer within the client timeout.
	ErrTimeout = errors.New("backend timeout")
	// ErrMalformed indicates the backend answered with a payload that could
	// not be parsed into the expected shape.
	ErrMalformed = errors.New("malformed backend response")

	// ErrModelUnavailable and ErrModelTimeout are the language-model
	// equivalents of ErrUnreachable and ErrTimeout. Model inference is slow,
	// so its timeout is configured in minutes rather than seconds and callers
	// often want to treat model failures differently from data failures.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrModelTimeout     = errors.New("model timeout")
)

// classifyTransport wraps a transport-level error from an HTTP round trip as
// either a timeout or an unreachable-backend error.
func classifyTransport(err error, timeoutErr, unreachableErr error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", timeoutErr, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", timeoutErr, err)
	default:
		return fmt.Errorf("%w: %v", unreachableErr, err)
	}
}
