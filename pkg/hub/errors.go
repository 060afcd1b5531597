package hub

import "errors"

var (
	// ErrAlreadyRegistered is returned when a second driver of the same
	// kind is registered.
	ErrAlreadyRegistered = errors.New("driver already registered for kind")
	// ErrCapacity is returned when the registry's slot table is full.
	ErrCapacity = errors.New("registry capacity exceeded")
	// ErrNotFound is returned for kinds with no registered driver.
	ErrNotFound = errors.New("kind not registered")
	// ErrOutOfRange is returned for enumeration indexes past the table.
	ErrOutOfRange = errors.New("index out of range")
	// ErrNotReady is returned by Latest before the first successful read
	// of a kind.
	ErrNotReady = errors.New("no valid sample yet")
	// ErrKindMismatch is returned when a driver produces a sample whose
	// kind differs from its declared kind.
	ErrKindMismatch = errors.New("driver returned sample of wrong kind")
)
