package lib

import (
	"context"
	"errors"
	"net"

	"github.com/gravitational/trace"
)

// IsCanceled returns true if the error results from a context cancellation.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(trace.Unwrap(err), context.Canceled)
}

// IsDeadline returns true if the error results from an expired deadline,
// either a context one or a network-level timeout.
func IsDeadline(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(trace.Unwrap(err), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.As(trace.Unwrap(err), &netErr) {
		return netErr.Timeout()
	}
	return false
}
