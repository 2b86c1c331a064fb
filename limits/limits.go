package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxIceCandidate is the largest opaque ICE candidate.
	MaxIceCandidate = 2 * 1024

	// MaxIceBatch is the most candidates carried by one message.
	MaxIceBatch = 64

	// MaxDescription is the largest opaque offer or answer.
	MaxDescription = 64 * 1024

	// MaxCallMessage is the largest opaque group call message.
	MaxCallMessage = 64 * 1024

	// MaxEnvelope is the largest relay frame.
	MaxEnvelope = 256 * 1024

	// MaxHTTPResponse is the largest HTTP response body read for the core.
	MaxHTTPResponse = 1024 * 1024
)

var (
	// ErrMessageEmpty is returned for empty payloads.
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge is returned for payloads over their limit.
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize checks that message is non-empty and at most maxSize
// bytes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateDescription checks an opaque offer or answer.
func ValidateDescription(description []byte) error {
	return ValidateMessageSize(description, MaxDescription)
}

// ValidateCallMessage checks an opaque group call message.
func ValidateCallMessage(message []byte) error {
	return ValidateMessageSize(message, MaxCallMessage)
}

// ValidateIceCandidates checks a batch of opaque candidates. An empty batch
// is valid.
func ValidateIceCandidates(candidates [][]byte) error {
	if len(candidates) > MaxIceBatch {
		return fmt.Errorf("%w: %d candidates exceed limit %d", ErrMessageTooLarge, len(candidates), MaxIceBatch)
	}
	for i, c := range candidates {
		if len(c) == 0 {
			return fmt.Errorf("%w: candidate %d", ErrMessageEmpty, i)
		}
		if len(c) > MaxIceCandidate {
			return fmt.Errorf("%w: candidate %d size %d exceeds limit %d", ErrMessageTooLarge, i, len(c), MaxIceCandidate)
		}
	}
	return nil
}
