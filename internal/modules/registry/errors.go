package registry

import "fmt"

// NotFoundError indicates the requested model version does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model version not found: %s", e.ID)
}

// ProtectedResourceError indicates an operation targeted the active model
// version, which cannot be deleted or evicted.
type ProtectedResourceError struct {
	ID string
}

func (e *ProtectedResourceError) Error() string {
	return fmt.Sprintf("model version %s is active and cannot be removed", e.ID)
}

// StorageError wraps a failure in the persistence layer (database or
// artifact filesystem).
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
