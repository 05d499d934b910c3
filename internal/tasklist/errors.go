package tasklist

import (
	"errors"
	"fmt"
)

// ErrCorruptStore indicates the on-disk document exists but cannot be parsed.
// The caller decides policy (abort startup vs start empty with a warning);
// the store never silently discards the file.
var ErrCorruptStore = errors.New("task store: corrupt document")

// ValidationError rejects a malformed intent before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid intent: " + e.Reason
}

// CapacityError rejects an add against a full list. Count and Limit are
// carried for user messaging.
type CapacityError struct {
	Count int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("list is full (%d/%d tasks)", e.Count, e.Limit)
}

// IndexError rejects a remove whose 1-based display index is outside the
// current list. Stale button taps land here; the index is never reinterpreted
// against the shifted list.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("task %d does not exist (list has %d)", e.Index, e.Count)
}
