package group

import "errors"

var (
	// ErrSessionEnded indicates a command issued after the engine ended
	// the call.
	ErrSessionEnded = errors.New("group call has ended")

	// ErrNoMembershipProof indicates a peek before the application
	// supplied a membership proof.
	ErrNoMembershipProof = errors.New("no membership proof")

	// ErrUnknownDevice indicates a demux id that is not in the call.
	ErrUnknownDevice = errors.New("unknown remote device")

	// ErrInvalidRenderer indicates a renderer without a consumer name.
	ErrInvalidRenderer = errors.New("renderer needs a consumer name")
)
