package window

import "errors"

var (
	// ErrNotConfigurable is returned when a define or delete would change
	// the shape of a non-configurable property.
	ErrNotConfigurable = errors.New("property is not configurable")

	// ErrReadOnly is returned when assigning to a non-writable data
	// property or an accessor without a setter.
	ErrReadOnly = errors.New("property is read-only")

	// ErrIllegalInvocation is returned when a receiver-sensitive native
	// function is invoked with the wrong receiver.
	ErrIllegalInvocation = errors.New("illegal invocation")
)
