package engine

import (
	"fmt"

	"github.com/opd-ai/callcore/crypto"
	"github.com/opd-ai/callcore/signaling"
)

// ConnectionKey identifies one connection: a call and a remote device.
// DeviceID is zero for the offering connection of an outgoing call until
// the first answer binds it to a device.
type ConnectionKey struct {
	CallID   signaling.CallID
	DeviceID signaling.DeviceID
}

// String returns the string representation of the key.
func (k ConnectionKey) String() string {
	return k.CallID.Format(k.DeviceID)
}

// IceServer is one STUN or TURN server.
type IceServer struct {
	URLs       []string
	Username   string
	Credential string
}

// ConnectionConfig carries everything a connection is built from. The
// certificate, key pair and local media belong to the call context and are
// shared by every connection of the call.
type ConnectionConfig struct {
	ICEServers    []IceServer
	HideIP        bool
	Certificate   *crypto.Certificate
	KeyPair       *crypto.KeyPair
	BandwidthMode signaling.BandwidthMode
	MediaType     signaling.CallMediaType
}

// IceState is the connectivity state of a connection.
type IceState int

const (
	IceStateNew IceState = iota
	IceStateChecking
	IceStateConnected
	IceStateDisconnected
	IceStateFailed
	IceStateClosed
)

// String returns the string representation of the ICE state.
func (s IceState) String() string {
	switch s {
	case IceStateNew:
		return "New"
	case IceStateChecking:
		return "Checking"
	case IceStateConnected:
		return "Connected"
	case IceStateDisconnected:
		return "Disconnected"
	case IceStateFailed:
		return "Failed"
	case IceStateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Engine is the media engine capability.
type Engine interface {
	// SetObserver installs the receiver of engine callbacks. It is called
	// once, before any other method.
	SetObserver(obs Observer)

	// CreateLocalMedia allocates the audio and optional video track shared
	// by every connection of one call.
	CreateLocalMedia(enableCamera bool) (LocalMedia, error)

	// CreateConnection allocates a peer connection for key.
	CreateConnection(key ConnectionKey, cfg ConnectionConfig, media LocalMedia) (Connection, error)

	// CreateMediaFactory allocates the factory shared by all group calls.
	CreateMediaFactory() (MediaFactory, error)

	// CreateGroupClient allocates the native side of a group call.
	CreateGroupClient(id ClientID, groupID []byte, sfuURL string, factory MediaFactory) (GroupClient, error)
}

// LocalMedia is the local audio track and optional video track of a call.
type LocalMedia interface {
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	// Dispose releases the tracks. Connections never call it.
	Dispose()
}

// MediaStream is incoming media for the host to render.
type MediaStream any

// Connection is a single peer connection.
type Connection interface {
	Key() ConnectionKey

	// CreateOffer produces the opaque offer for an outgoing call.
	CreateOffer() ([]byte, error)

	// ApplyOffer applies a remote offer and returns the opaque answer.
	ApplyOffer(offer []byte) ([]byte, error)

	// ApplyAnswer applies a remote answer to an offering connection.
	ApplyAnswer(answer []byte) error

	// Fork creates a connection for another answering device reusing the
	// offer of this connection.
	Fork(key ConnectionKey) (Connection, error)

	AddIceCandidates(candidates []signaling.IceCandidate) error

	// SendAccepted tells the remote, over the media channel, that the
	// local user accepted the call.
	SendAccepted() error

	SendVideoStatus(enabled bool) error

	SetBandwidthMode(mode signaling.BandwidthMode) error

	// Close tears the connection down. Shared local media is left intact.
	Close() error
}

// Observer receives engine callbacks for one-to-one and group calls.
type Observer interface {
	IceStateChanged(key ConnectionKey, state IceState)
	IceCandidatesGathered(key ConnectionKey, candidates []signaling.IceCandidate)
	RemoteAccepted(key ConnectionKey)
	RemoteVideoStatus(key ConnectionKey, enabled bool)
	IncomingMedia(key ConnectionKey, stream MediaStream)

	GroupObserver
}
