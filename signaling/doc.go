// Package signaling defines the vocabulary exchanged between the call core,
// the host application and the media engine for one-to-one calls.
//
// The package is deliberately free of behavior: it holds identifiers
// (CallID, DeviceID), the enumerations carried on the wire (CallMediaType,
// HangupType, BandwidthMode, HTTPMethod), the outcome vocabulary reported to
// the host (CallEvent, EndReason) and the structs describing received
// signaling messages.
//
// # Tag Decoding
//
// Hosts frequently receive enumerations as raw integers decoded from their own
// wire format. Every enumeration has a Parse function that maps the integer
// tag to a typed value and returns ErrUnrecognizedTag for values it does not
// know, so a newer peer sending an unknown tag never crashes an older core:
//
//	typ, err := signaling.ParseHangupType(raw)
//	if errors.Is(err, signaling.ErrUnrecognizedTag) {
//	    // drop the message
//	}
//
// # Opaque Payloads
//
// Offer, Answer and IceCandidate payloads are opaque byte slices produced and
// consumed by the media engine. The call core never inspects them.
package signaling
