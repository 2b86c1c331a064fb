package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// ClientID identifies a group call within one coordinator.
type ClientID uint32

// InvalidClientID is returned when a group call could not be created.
const InvalidClientID ClientID = 0

// DemuxID is the SFU routing key of one remote device.
type DemuxID uint32

// ConnectionState is the health of the transport to the SFU.
type ConnectionState int

const (
	NotConnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ParseConnectionState decodes a raw connection state tag.
func ParseConnectionState(tag int32) (ConnectionState, error) {
	if tag < int32(NotConnected) || tag > int32(Reconnecting) {
		return 0, fmt.Errorf("%w: connection state %d", signaling.ErrUnrecognizedTag, tag)
	}
	return ConnectionState(tag), nil
}

// JoinState is the local participation in a group call.
type JoinState int

const (
	NotJoined JoinState = iota
	Joining
	Joined
	// Pending means the join waits for approval.
	Pending
)

// String returns the string representation of the join state.
func (s JoinState) String() string {
	switch s {
	case NotJoined:
		return "NotJoined"
	case Joining:
		return "Joining"
	case Joined:
		return "Joined"
	case Pending:
		return "Pending"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ParseJoinState decodes a raw join state tag.
func ParseJoinState(tag int32) (JoinState, error) {
	if tag < int32(NotJoined) || tag > int32(Pending) {
		return 0, fmt.Errorf("%w: join state %d", signaling.ErrUnrecognizedTag, tag)
	}
	return JoinState(tag), nil
}

// GroupEndReason is why a group call ended.
type GroupEndReason int

const (
	DeviceExplicitlyDisconnected GroupEndReason = iota
	ServerExplicitlyDisconnected
	CallManagerIsBusy
	SfuClientFailedToJoin
	FailedToCreatePeerConnectionFactory
	FailedToNegotiateSrtpKeys
	FailedToCreatePeerConnection
	FailedToStartPeerConnection
	FailedToUpdatePeerConnection
	FailedToSetMaxSendBitrate
	IceFailedWhileConnecting
	IceFailedAfterConnected
	ServerChangedDemuxID
	HasMaxDevices
	DeviceListError
	MembershipProofDenied
	MembershipProofExpired
	CallFailure
)

var groupEndReasonNames = [...]string{
	"DeviceExplicitlyDisconnected",
	"ServerExplicitlyDisconnected",
	"CallManagerIsBusy",
	"SfuClientFailedToJoin",
	"FailedToCreatePeerConnectionFactory",
	"FailedToNegotiateSrtpKeys",
	"FailedToCreatePeerConnection",
	"FailedToStartPeerConnection",
	"FailedToUpdatePeerConnection",
	"FailedToSetMaxSendBitrate",
	"IceFailedWhileConnecting",
	"IceFailedAfterConnected",
	"ServerChangedDemuxID",
	"HasMaxDevices",
	"DeviceListError",
	"MembershipProofDenied",
	"MembershipProofExpired",
	"CallFailure",
}

// String returns the string representation of the reason.
func (r GroupEndReason) String() string {
	if r >= 0 && int(r) < len(groupEndReasonNames) {
		return groupEndReasonNames[r]
	}
	return fmt.Sprintf("Unknown(%d)", int(r))
}

// ParseGroupEndReason decodes a raw end reason tag.
func ParseGroupEndReason(tag int32) (GroupEndReason, error) {
	if tag < 0 || int(tag) >= len(groupEndReasonNames) {
		return 0, fmt.Errorf("%w: group end reason %d", signaling.ErrUnrecognizedTag, tag)
	}
	return GroupEndReason(tag), nil
}

// VideoRequest asks the SFU for one remote device's video at a size. A zero
// width or height pauses the video. A nil Framerate leaves it uncapped.
type VideoRequest struct {
	DemuxID   DemuxID
	Width     uint16
	Height    uint16
	Framerate *uint16
}

// Paused reports whether the request asks for no video.
func (r VideoRequest) Paused() bool {
	return r.Width == 0 || r.Height == 0
}

// Equal compares two requests including the framerate cap.
func (r VideoRequest) Equal(o VideoRequest) bool {
	if r.DemuxID != o.DemuxID || r.Width != o.Width || r.Height != o.Height {
		return false
	}
	if r.Framerate == nil || o.Framerate == nil {
		return r.Framerate == nil && o.Framerate == nil
	}
	return *r.Framerate == *o.Framerate
}

// RemoteDeviceUpdate is the SFU's view of one remote device. Nil mute flags
// mean unknown.
type RemoteDeviceUpdate struct {
	DemuxID           DemuxID
	UserID            uuid.UUID
	MediaKeysReceived bool
	AudioMuted        *bool
	VideoMuted        *bool
	AddedTime         time.Time
	SpeakerTime       time.Time
}

// VideoTrack is an incoming video track handed to a group session.
type VideoTrack interface {
	// Release disposes the track when nobody consumes it.
	Release()
}

// MediaFactory is the media resources shared by every group call of a
// coordinator.
type MediaFactory interface {
	Dispose()
}

// GroupClient is the native side of one group call.
type GroupClient interface {
	Connect() error
	Join() error
	Leave() error
	Disconnect() error
	SetOutgoingAudioMuted(muted bool) error
	SetOutgoingVideoMuted(muted bool) error
	ResendMediaKeys() error
	SetBandwidthMode(mode signaling.BandwidthMode) error
	RequestVideo(requests []VideoRequest) error
	SetMembershipProof(proof []byte) error
	SetGroupMembers(members []sfu.GroupMember) error
	HandleCallMessage(sender uuid.UUID, senderDevice signaling.DeviceID, message []byte) error
	Close() error
}

// GroupObserver receives group-call callbacks keyed by client id.
type GroupObserver interface {
	RequestMembershipProof(id ClientID)
	RequestGroupMembers(id ClientID)
	GroupConnectionStateChanged(id ClientID, state ConnectionState)
	JoinStateChanged(id ClientID, state JoinState)
	RemoteDevicesChanged(id ClientID, devices []RemoteDeviceUpdate)
	IncomingVideoTrack(id ClientID, demuxID DemuxID, track VideoTrack)
	PeekChanged(id ClientID, info *sfu.PeekInfo)
	Ended(id ClientID, reason GroupEndReason)
	SendCallMessage(recipient uuid.UUID, message []byte)
}
