package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/limits"
	"github.com/opd-ai/callcore/signaling"
)

// Envelope kinds.
const (
	KindSignal      = "signal"
	KindCallMessage = "call_message"
)

// Envelope is the JSON frame relayed by the hub. Enum fields carry their
// integer tags. ToDevice zero addresses every device of the peer.
type Envelope struct {
	Kind         string   `json:"kind"`
	From         string   `json:"from"`
	FromDevice   uint32   `json:"from_device"`
	To           string   `json:"to"`
	ToDevice     uint32   `json:"to_device,omitempty"`
	Type         int32    `json:"type"`
	CallID       uint64   `json:"call_id,omitempty"`
	MediaType    int32    `json:"media_type,omitempty"`
	Opaque       []byte   `json:"opaque,omitempty"`
	Candidates   [][]byte `json:"candidates,omitempty"`
	HangupType   int32    `json:"hangup_type,omitempty"`
	HangupDevice uint32   `json:"hangup_device,omitempty"`
	MultiRing    bool     `json:"multi_ring,omitempty"`
	SentAt       int64    `json:"sent_at"`
}

// CallMessage is a decoded group call message.
type CallMessage struct {
	Sender       uuid.UUID
	SenderDevice signaling.DeviceID
	Message      []byte
	Age          time.Duration
}

// Receiver describes the local device decoding an envelope.
type Receiver struct {
	Device  signaling.DeviceID
	Primary bool
}

func address(to string, dest signaling.Destination) (string, uint32) {
	if dest.Broadcast {
		return to, 0
	}
	return to, uint32(dest.DeviceID)
}

// Destination returns the devices the envelope is addressed to.
func (e Envelope) Destination() signaling.Destination {
	if e.ToDevice == 0 {
		return signaling.BroadcastTo()
	}
	return signaling.DeviceTo(signaling.DeviceID(e.ToDevice))
}

// Marshal encodes the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes a frame and checks the fields every kind needs.
func ParseEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.To == "" || e.From == "" {
		return Envelope{}, ErrInvalidPeer
	}
	if e.Kind != KindSignal && e.Kind != KindCallMessage {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return e, nil
}

// age is the time since the sender stamped the envelope, never negative.
func (e Envelope) age(now time.Time) time.Duration {
	if e.SentAt == 0 {
		return 0
	}
	return max(now.Sub(time.UnixMilli(e.SentAt)), 0)
}

// Decode turns the envelope into the message the coordinator consumes: one
// of signaling.ReceivedOffer, ReceivedAnswer, ReceivedIce, ReceivedHangup,
// ReceivedBusy, or a CallMessage. Unknown tags yield an error wrapping
// signaling.ErrUnrecognizedTag.
func (e Envelope) Decode(self Receiver, now time.Time) (any, error) {
	sender := signaling.DeviceID(e.FromDevice)
	callID := signaling.CallID(e.CallID)

	if e.Kind == KindCallMessage {
		id, err := uuid.Parse(e.From)
		if err != nil {
			return nil, fmt.Errorf("%w: sender %q is not a user id", ErrInvalidPeer, e.From)
		}
		return CallMessage{Sender: id, SenderDevice: sender, Message: e.Opaque, Age: e.age(now)}, nil
	}

	t, err := signaling.ParseMessageType(e.Type)
	if err != nil {
		return nil, err
	}

	switch t {
	case signaling.MessageTypeOffer:
		mediaType, err := signaling.ParseCallMediaType(e.MediaType)
		if err != nil {
			return nil, err
		}
		return signaling.ReceivedOffer{
			CallID:                  callID,
			Remote:                  e.From,
			SenderDeviceID:          sender,
			ReceiverDeviceID:        self.Device,
			Offer:                   signaling.Offer{CallMediaType: mediaType, Opaque: e.Opaque},
			Age:                     e.age(now),
			ReceiverIsPrimary:       self.Primary,
			SenderSupportsMultiRing: e.MultiRing,
		}, nil
	case signaling.MessageTypeAnswer:
		return signaling.ReceivedAnswer{
			CallID:                  callID,
			SenderDeviceID:          sender,
			Answer:                  signaling.Answer{Opaque: e.Opaque},
			SenderSupportsMultiRing: e.MultiRing,
		}, nil
	case signaling.MessageTypeIce:
		if err := limits.ValidateIceCandidates(e.Candidates); err != nil {
			return nil, err
		}
		candidates := make([]signaling.IceCandidate, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			candidates = append(candidates, signaling.IceCandidate{Opaque: c})
		}
		return signaling.ReceivedIce{CallID: callID, SenderDeviceID: sender, Candidates: candidates}, nil
	case signaling.MessageTypeHangup:
		hangupType, err := signaling.ParseHangupType(e.HangupType)
		if err != nil {
			return nil, err
		}
		return signaling.ReceivedHangup{
			CallID:         callID,
			SenderDeviceID: sender,
			Hangup:         signaling.Hangup{Type: hangupType, DeviceID: signaling.DeviceID(e.HangupDevice)},
		}, nil
	default:
		return signaling.ReceivedBusy{CallID: callID, SenderDeviceID: sender}, nil
	}
}
