// Package limits centralizes the size limits of signaling payloads.
//
// # Size Hierarchy
//
//   - MaxIceCandidate (2 KiB): one opaque ICE candidate.
//   - MaxIceBatch (64): candidates in one message.
//   - MaxDescription (64 KiB): an opaque offer or answer.
//   - MaxCallMessage (64 KiB): an opaque group call message.
//   - MaxEnvelope (256 KiB): one relay frame, large enough for a full ICE
//     batch or a description with its JSON overhead.
//   - MaxHTTPResponse (1 MiB): the body of an SFU response.
//
// # Validation Functions
//
// Each validation function rejects empty payloads and payloads over the
// limit:
//
//	if err := limits.ValidateDescription(offer); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// For other limits, use ValidateMessageSize:
//
//	err := limits.ValidateMessageSize(data, 4096)
package limits
