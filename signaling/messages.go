package signaling

import (
	"fmt"
	"time"

	"github.com/opd-ai/callcore/limits"
)

// MessageType identifies the kind of an outbound signaling message for send
// result bookkeeping.
type MessageType int32

const (
	MessageTypeOffer MessageType = iota
	MessageTypeAnswer
	MessageTypeIce
	MessageTypeHangup
	MessageTypeBusy
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageTypeOffer:
		return "Offer"
	case MessageTypeAnswer:
		return "Answer"
	case MessageTypeIce:
		return "Ice"
	case MessageTypeHangup:
		return "Hangup"
	case MessageTypeBusy:
		return "Busy"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// Critical reports whether failing to send a message of this type ends the
// call with SignalingFailure.
func (t MessageType) Critical() bool {
	return t == MessageTypeOffer || t == MessageTypeAnswer || t == MessageTypeHangup
}

// ParseMessageType decodes a raw message type tag.
func ParseMessageType(tag int32) (MessageType, error) {
	switch MessageType(tag) {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeIce, MessageTypeHangup, MessageTypeBusy:
		return MessageType(tag), nil
	default:
		return 0, fmt.Errorf("%w: message type %d", ErrUnrecognizedTag, tag)
	}
}

// Offer is an opaque offer together with the proposed media type.
type Offer struct {
	CallMediaType CallMediaType
	Opaque        []byte
}

// Answer is an opaque answer.
type Answer struct {
	Opaque []byte
}

// IceCandidate is one opaque ICE candidate.
type IceCandidate struct {
	Opaque []byte
}

// Remote is the application-defined identity of a call counterparty. The
// core compares remotes only through Observer.CompareRemotes.
type Remote any

// ReceivedOffer carries an offer received from the network.
type ReceivedOffer struct {
	CallID                  CallID
	Remote                  Remote
	SenderDeviceID          DeviceID
	ReceiverDeviceID        DeviceID
	Offer                   Offer
	Age                     time.Duration
	SenderIdentityKey       []byte
	ReceiverIdentityKey     []byte
	ReceiverIsPrimary       bool
	SenderSupportsMultiRing bool
}

// Validate checks the fields that must be present before the offer is
// applied to any state.
func (r ReceivedOffer) Validate() error {
	if r.CallID == 0 {
		return ErrInvalidCallID
	}
	if err := r.SenderDeviceID.Validate(); err != nil {
		return err
	}
	if len(r.Offer.Opaque) == 0 {
		return ErrEmptyPayload
	}
	return limits.ValidateDescription(r.Offer.Opaque)
}

// ReceivedAnswer carries an answer received from the network.
type ReceivedAnswer struct {
	CallID                  CallID
	SenderDeviceID          DeviceID
	Answer                  Answer
	SenderIdentityKey       []byte
	ReceiverIdentityKey     []byte
	SenderSupportsMultiRing bool
}

// Validate checks the fields that must be present before the answer is
// applied to any state.
func (r ReceivedAnswer) Validate() error {
	if r.CallID == 0 {
		return ErrInvalidCallID
	}
	if err := r.SenderDeviceID.Validate(); err != nil {
		return err
	}
	if len(r.Answer.Opaque) == 0 {
		return ErrEmptyPayload
	}
	return limits.ValidateDescription(r.Answer.Opaque)
}

// ReceivedIce carries ICE candidates received from the network.
type ReceivedIce struct {
	CallID         CallID
	SenderDeviceID DeviceID
	Candidates     []IceCandidate
}

// Validate checks the call and sender ids and the candidate sizes.
func (r ReceivedIce) Validate() error {
	if r.CallID == 0 {
		return ErrInvalidCallID
	}
	if err := r.SenderDeviceID.Validate(); err != nil {
		return err
	}
	candidates := make([][]byte, len(r.Candidates))
	for i, c := range r.Candidates {
		candidates[i] = c.Opaque
	}
	return limits.ValidateIceCandidates(candidates)
}

// ReceivedHangup carries a hangup received from the network.
type ReceivedHangup struct {
	CallID         CallID
	SenderDeviceID DeviceID
	Hangup         Hangup
}

// Validate checks the call and sender ids.
func (r ReceivedHangup) Validate() error {
	if r.CallID == 0 {
		return ErrInvalidCallID
	}
	return r.SenderDeviceID.Validate()
}

// ReceivedBusy carries a busy message received from the network.
type ReceivedBusy struct {
	CallID         CallID
	SenderDeviceID DeviceID
}

// Validate checks the call and sender ids.
func (r ReceivedBusy) Validate() error {
	if r.CallID == 0 {
		return ErrInvalidCallID
	}
	return r.SenderDeviceID.Validate()
}

// Destination addresses an outbound signaling message. A Broadcast
// destination goes to every device of the remote and DeviceID is ignored.
type Destination struct {
	Broadcast bool
	DeviceID  DeviceID
}

// BroadcastTo returns a destination reaching every device of the remote.
func BroadcastTo() Destination {
	return Destination{Broadcast: true}
}

// DeviceTo returns a destination reaching a single device.
func DeviceTo(id DeviceID) Destination {
	return Destination{DeviceID: id}
}

// String returns the string representation of the destination.
func (d Destination) String() string {
	if d.Broadcast {
		return "broadcast"
	}
	return fmt.Sprintf("device:%d", d.DeviceID)
}
