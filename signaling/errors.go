package signaling

import "errors"

// Sentinel errors for signaling validation.
var (
	// ErrUnrecognizedTag indicates an integer tag that does not map to any
	// known enumeration value.
	ErrUnrecognizedTag = errors.New("unrecognized tag")

	// ErrInvalidDeviceID indicates a remote device id below 1.
	ErrInvalidDeviceID = errors.New("invalid device id")

	// ErrInvalidCallID indicates a zero call id.
	ErrInvalidCallID = errors.New("invalid call id")

	// ErrEmptyPayload indicates an offer or answer without opaque data.
	ErrEmptyPayload = errors.New("empty opaque payload")
)
