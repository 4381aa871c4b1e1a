package engine

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed node: an unknown kind, a missing
// action, or config that fails the action's own requirements. It aborts
// only the branch the node belongs to.
type ValidationError struct {
	NodeID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("validation failed for node %s: %s", e.NodeID, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ProviderError reports a failed external provider call
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s call failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a provider call that exceeded its budget. It
// propagates like any other provider failure but stays distinguishable in
// logs and messages.
type TimeoutError struct {
	Provider string
	Budget   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s call timed out after %s", e.Provider, e.Budget)
}

// CycleError is a structural error: the definition's edges loop back on
// themselves, so the run is rejected before any node executes. NodeID
// names a node on the cycle.
type CycleError struct {
	NodeID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at node %s", e.NodeID)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCycle reports whether err is (or wraps) a CycleError
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
