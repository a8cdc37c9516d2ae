package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// TransientError marks a provider failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a provider failure that retrying cannot fix, such as
// a rejected request or bad credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying. Provider clients tag
// the errors they can classify; anything else falls back to network and
// message heuristics.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"ThrottlingException", "TooManyRequests", "Rate exceeded", "rate limit",
		"ServiceUnavailable", "InternalServerException", "status code: 5",
		"connection reset", "connection refused", "EOF", "timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func statusTransient(code int) bool {
	return code == 408 || code == 409 || code == 429 || code >= 500
}
