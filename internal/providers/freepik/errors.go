package freepik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrUpstreamTimeout signals that a provider call exceeded its bounded
// timeout before a response arrived.
var ErrUpstreamTimeout = errors.New("freepik: upstream timeout")

// UpstreamError carries a non-2xx provider response. Submit calls are never
// retried on it; duplicate submissions bill twice.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("freepik: http %d: %s", e.StatusCode, e.Body)
}

// PostProcessError wraps a failed post-processing call with the operation
// that caused it.
type PostProcessError struct {
	Operation string
	Err       error
}

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("freepik: %s: %v", e.Operation, e.Err)
}

func (e *PostProcessError) Unwrap() error { return e.Err }

// wrapTransport normalizes transport-level failures: deadline and timeout
// errors become ErrUpstreamTimeout so callers can branch on the taxonomy.
func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return err
}
