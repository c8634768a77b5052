package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrBackendUnavailable means the backend could not be reached at all
	// (connection failure, unknown id, open circuit).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnsupportedModality means the selected backend has no multimodal
	// capability.
	ErrUnsupportedModality = errors.New("backend does not support image input")
)

// BackendError is a request-level failure reported by a reachable backend.
type BackendError struct {
	Backend    string
	StatusCode int // 0 when the backend reports no HTTP status
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

// IsRetryableError checks if an error is worth retrying by a caller.
// The gateway itself never retries; callers own retry policy.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		switch backendErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	// String fallback only for untyped errors from third-party libraries
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"rate limit",
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"unavailable",
		"resource_exhausted",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// isUnreachable reports whether the error indicates the backend could not be
// reached, as opposed to a request-level failure it reported.
func isUnreachable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"tls handshake",
		"dial tcp",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
