package pion

import (
	"github.com/google/uuid"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// channelObserver forwards one-to-one callbacks to buffered channels.
type channelObserver struct {
	ice        chan engine.IceState
	candidates chan []signaling.IceCandidate
	accepted   chan engine.ConnectionKey
	video      chan bool
	media      chan engine.MediaStream
}

func newChannelObserver() *channelObserver {
	return &channelObserver{
		ice:        make(chan engine.IceState, 16),
		candidates: make(chan []signaling.IceCandidate, 64),
		accepted:   make(chan engine.ConnectionKey, 4),
		video:      make(chan bool, 4),
		media:      make(chan engine.MediaStream, 4),
	}
}

// trySend never blocks a pion callback goroutine.
func trySend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func (o *channelObserver) IceStateChanged(_ engine.ConnectionKey, state engine.IceState) {
	trySend(o.ice, state)
}

func (o *channelObserver) IceCandidatesGathered(_ engine.ConnectionKey, candidates []signaling.IceCandidate) {
	trySend(o.candidates, candidates)
}

func (o *channelObserver) RemoteAccepted(key engine.ConnectionKey) { trySend(o.accepted, key) }

func (o *channelObserver) RemoteVideoStatus(_ engine.ConnectionKey, enabled bool) {
	trySend(o.video, enabled)
}

func (o *channelObserver) IncomingMedia(_ engine.ConnectionKey, stream engine.MediaStream) {
	trySend(o.media, stream)
}

func (o *channelObserver) RequestMembershipProof(engine.ClientID)                                {}
func (o *channelObserver) RequestGroupMembers(engine.ClientID)                                   {}
func (o *channelObserver) GroupConnectionStateChanged(engine.ClientID, engine.ConnectionState)   {}
func (o *channelObserver) JoinStateChanged(engine.ClientID, engine.JoinState)                    {}
func (o *channelObserver) RemoteDevicesChanged(engine.ClientID, []engine.RemoteDeviceUpdate)     {}
func (o *channelObserver) IncomingVideoTrack(engine.ClientID, engine.DemuxID, engine.VideoTrack) {}
func (o *channelObserver) PeekChanged(engine.ClientID, *sfu.PeekInfo)                            {}
func (o *channelObserver) Ended(engine.ClientID, engine.GroupEndReason)                          {}
func (o *channelObserver) SendCallMessage(uuid.UUID, []byte)                                     {}
