package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorage means the backing substrate is unreachable; callers degrade
	// to the capped in-memory list instead of failing the capture.
	ErrStorage = errors.New("storage unavailable")

	// ErrIndexUnavailable means a full-text or ANN engine is not ready; the
	// fallback engine answers instead and callers never see this directly.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbedding is a single-document or query embedding failure.
	ErrEmbedding = errors.New("embedding failed")

	ErrTimeout        = errors.New("deadline exceeded")
	ErrCancelled      = errors.New("stopped by caller")
	ErrRunFailed      = errors.New("assistant run failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoDocuments    = errors.New("no documents available for search")
	ErrRateLimited    = errors.New("too many requests")
	ErrSearchInFlight = errors.New("search already in flight")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FromContext maps a context termination onto the stopped-vs-timeout
// distinction the polling loops must surface.
func FromContext(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(ErrTimeout, operation, err)
	case errors.Is(err, context.Canceled):
		return WrapError(ErrCancelled, operation, err)
	default:
		return err
	}
}
