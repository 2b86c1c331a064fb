package callcore

import "errors"

var (
	// ErrClosed indicates an operation on a closed coordinator.
	ErrClosed = errors.New("coordinator is closed")

	// ErrUnknownGroupCall indicates a client id with no open group call.
	ErrUnknownGroupCall = errors.New("unknown group call")

	// ErrStaleMessage indicates a call message older than the maximum
	// message age.
	ErrStaleMessage = errors.New("call message too old")
)
