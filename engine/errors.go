package engine

import "errors"

// Sentinel errors returned by world operations
// Callers match these with errors.Is; returned values are wrapped with
// operation context via fmt.Errorf("...: %w", ...)
var (
	// ErrInvalidComponentState is returned when a registered validator
	// rejects a component value on add or overwrite
	ErrInvalidComponentState = errors.New("invalid component state")

	// ErrComponentNotPresent is returned when removing or fetching a
	// component type the entity does not have
	ErrComponentNotPresent = errors.New("component not present")

	// ErrDuplicateSystemName is returned when registering a system under
	// a name that is already taken
	ErrDuplicateSystemName = errors.New("duplicate system name")

	// ErrSchedulingCycle is returned at registration time when the
	// before/after constraints of the registered systems cannot be
	// topologically ordered
	ErrSchedulingCycle = errors.New("scheduling cycle")

	// ErrUnknownEntity is returned for operations on a destroyed entity
	// or a stale handle whose generation has been recycled
	ErrUnknownEntity = errors.New("unknown entity")
)
