package board

import (
	"errors"
	"fmt"
)

// Kind is the stable classification of a board error used in API payloads.
type Kind string

const (
	KindInvalidStage    Kind = "invalid_stage"
	KindOrderNotFound   Kind = "order_not_found"
	KindStageInUse      Kind = "stage_in_use"
	KindInvalidPosition Kind = "invalid_position"
	KindNetworkFailure  Kind = "network_failure"
	KindUnauthorized    Kind = "unauthorized"
	KindInvalidInput    Kind = "invalid_input"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

var (
	// ErrInvalidStage reports an unknown stage id or one owned by another family.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrOrderNotFound reports an order without an assignment in the caller's family.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStageInUse reports a stage delete blocked by referencing assignments.
	ErrStageInUse = errors.New("stage in use")
	// ErrInvalidPosition reports a duplicate, missing, or non-contiguous position set.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrNetworkFailure reports a transport-level failure talking to the board API.
	ErrNetworkFailure = errors.New("network failure")
	// ErrUnauthorized reports a rejected or missing bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput reports a malformed request (empty batch, bad priority, blank name).
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited reports a mutation rejected by the per-user limiter.
	ErrRateLimited = errors.New("rate limited")
)

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidStage, KindInvalidStage},
	{ErrOrderNotFound, KindOrderNotFound},
	{ErrStageInUse, KindStageInUse},
	{ErrInvalidPosition, KindInvalidPosition},
	{ErrNetworkFailure, KindNetworkFailure},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidInput, KindInvalidInput},
	{ErrRateLimited, KindRateLimited},
}

// ErrorClassifier lets errors declare their own Kind.
type ErrorClassifier interface {
	ErrorKind() Kind
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	for _, entry := range sentinelKinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// SentinelFor returns the sentinel error for a wire kind, or nil when the
// kind carries no sentinel.
func SentinelFor(kind Kind) error {
	for _, entry := range sentinelKinds {
		if entry.kind == kind {
			return entry.err
		}
	}
	return nil
}

// IsValidation reports whether err is a caller mistake that must not be retried.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidStage, KindOrderNotFound, KindStageInUse, KindInvalidPosition, KindInvalidInput:
		return true
	default:
		return false
	}
}

// InvalidInputf wraps ErrInvalidInput with a formatted detail.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// BatchError is the aggregate failure of a bulk update. Applied counts the
// items persisted before the failure; it is kept for logging and is not part
// of the wire contract.
type BatchError struct {
	Applied int
	Total   int
	OrderID string
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk update failed after %d of %d orders: %v", e.Applied, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ErrorKind reports the kind of the underlying item failure.
func (e *BatchError) ErrorKind() Kind {
	if e == nil || e.Err == nil {
		return KindInternal
	}
	return KindOf(e.Err)
}
