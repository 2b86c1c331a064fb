package call

import "errors"

// Errors returned by Manager operations. Each is also logged; none of them
// changes call state.
var (
	// ErrCallAlreadyActive indicates an outgoing call attempt while another
	// call is active.
	ErrCallAlreadyActive = errors.New("a call is already active")

	// ErrNoActiveCall indicates an operation that needs an active call.
	ErrNoActiveCall = errors.New("no active call")

	// ErrCallIDMismatch indicates a call id that does not match the
	// active call.
	ErrCallIDMismatch = errors.New("call id does not match the active call")

	// ErrInvalidState indicates an operation not valid in the current
	// call state.
	ErrInvalidState = errors.New("operation not valid in current call state")

	// ErrUnknownDevice indicates a message from a device the call does not
	// know.
	ErrUnknownDevice = errors.New("unknown remote device")
)
