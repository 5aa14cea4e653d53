package notifications

import "errors"

var (
	// ErrUnauthenticated means no caller identity was present.
	ErrUnauthenticated = errors.New("notifications: unauthenticated")
	// ErrForbidden means the caller holds no grant on the device.
	ErrForbidden = errors.New("notifications: forbidden")
	// ErrOwnershipViolation means a fetched row's owner did not match the
	// caller. This indicates a store-level authorization bug and is never
	// silently filtered.
	ErrOwnershipViolation = errors.New("notifications: rule owner mismatch")
	// ErrStoreUnavailable wraps transient persistence failures.
	ErrStoreUnavailable = errors.New("notifications: store unavailable")
)
