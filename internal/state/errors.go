// Package state provides the plumbing shared by all prepcoach state
// managers: the error taxonomy, the persisted key namespace, and the
// snapshot notifier that publishes manager state to UI subscribers.
package state

import "fmt"

// StorageReadError wraps a persistence adapter read failure.
type StorageReadError struct {
	Key string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("storage read failed for %s: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError wraps a persistence adapter write failure.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write failed for %s: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// ValidationError reports an operation invoked with an invalid argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// StateConsistencyError reports an operation invoked against state that
// cannot support it (no current session, no signed-in user, illegal
// status transition). The original app silently no-oped in these cases;
// this engine raises instead.
type StateConsistencyError struct {
	Op     string
	Reason string
}

func (e *StateConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
