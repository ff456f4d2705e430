package sync

import (
	"errors"
	"fmt"
)

// The sync engine reports failures through a small closed taxonomy.
// Conflicts are deliberately absent: a detected conflict is a normal,
// structured push outcome, never an error.

// ValidationError marks a malformed request. Not retryable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

// NotFoundError marks an unknown device, owner, or conflict. Lookups never
// reveal whether the resource exists under a different owner.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// DeviceInactiveError marks a pull or push from a deactivated device.
// Actionable by re-registering the device.
type DeviceInactiveError struct {
	DeviceID string
}

func (e *DeviceInactiveError) Error() string {
	return fmt.Sprintf("device %s is deactivated", e.DeviceID)
}

// StorageError wraps a transient backend failure. Pull and push are
// idempotent at the batch level, so the whole call is safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func storagef(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsDeviceInactive reports whether err is a DeviceInactiveError.
func IsDeviceInactive(err error) bool {
	var die *DeviceInactiveError
	return errors.As(err, &die)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
