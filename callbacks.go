package callcore

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// engineCallbacks routes engine callbacks, already on the serial context,
// to the call manager or to the group call named by the client id.
type engineCallbacks struct {
	c *Coordinator
}

func (cb engineCallbacks) IceStateChanged(key engine.ConnectionKey, state engine.IceState) {
	cb.c.calls.HandleIceStateChanged(key, state)
}

func (cb engineCallbacks) IceCandidatesGathered(key engine.ConnectionKey, candidates []signaling.IceCandidate) {
	cb.c.calls.HandleIceCandidatesGathered(key, candidates)
}

func (cb engineCallbacks) RemoteAccepted(key engine.ConnectionKey) {
	cb.c.calls.HandleRemoteAccepted(key)
}

func (cb engineCallbacks) RemoteVideoStatus(key engine.ConnectionKey, enabled bool) {
	cb.c.calls.HandleRemoteVideoStatus(key, enabled)
}

func (cb engineCallbacks) IncomingMedia(key engine.ConnectionKey, stream engine.MediaStream) {
	cb.c.calls.HandleIncomingMedia(key, stream)
}

// session looks up a group call; unknown ids are expected after teardown.
func (cb engineCallbacks) session(function string, id engine.ClientID) (*group.Session, bool) {
	s, ok := cb.c.groups.Get(uint32(id))
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  function,
			"client_id": id,
		}).Warn("Engine callback for unknown group call")
	}
	return s, ok
}

func (cb engineCallbacks) RequestMembershipProof(id engine.ClientID) {
	if s, ok := cb.session("RequestMembershipProof", id); ok {
		s.HandleRequestMembershipProof()
	}
}

func (cb engineCallbacks) RequestGroupMembers(id engine.ClientID) {
	if s, ok := cb.session("RequestGroupMembers", id); ok {
		s.HandleRequestGroupMembers()
	}
}

func (cb engineCallbacks) GroupConnectionStateChanged(id engine.ClientID, state engine.ConnectionState) {
	if s, ok := cb.session("GroupConnectionStateChanged", id); ok {
		s.HandleConnectionStateChanged(state)
	}
}

func (cb engineCallbacks) JoinStateChanged(id engine.ClientID, state engine.JoinState) {
	if s, ok := cb.session("JoinStateChanged", id); ok {
		s.HandleJoinStateChanged(state)
	}
}

func (cb engineCallbacks) RemoteDevicesChanged(id engine.ClientID, devices []engine.RemoteDeviceUpdate) {
	if s, ok := cb.session("RemoteDevicesChanged", id); ok {
		s.HandleRemoteDevicesChanged(devices)
	}
}

func (cb engineCallbacks) IncomingVideoTrack(id engine.ClientID, demuxID engine.DemuxID, track engine.VideoTrack) {
	if s, ok := cb.session("IncomingVideoTrack", id); ok && s.HandleIncomingVideoTrack(demuxID, track) {
		return
	}
	if track != nil {
		track.Release()
	}
}

func (cb engineCallbacks) PeekChanged(id engine.ClientID, info *sfu.PeekInfo) {
	if s, ok := cb.session("PeekChanged", id); ok {
		s.HandlePeekChanged(info)
	}
}

// Ended removes the group call from the registry before ending it, so the
// id is destroyed exactly once.
func (cb engineCallbacks) Ended(id engine.ClientID, reason engine.GroupEndReason) {
	s, ok := cb.c.groups.Remove(uint32(id))
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "Ended",
			"client_id": id,
			"reason":    reason,
		}).Warn("Engine ended an unknown group call")
		return
	}
	s.HandleEnded(reason)
}

func (cb engineCallbacks) SendCallMessage(recipient uuid.UUID, message []byte) {
	cb.c.observer.OnSendCallMessage(recipient, message)
}
