package engine

import (
	"github.com/google/uuid"

	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// Serialize wraps obs so that every callback is handed to post instead of
// running on the engine's goroutine. post must run the closures one at a
// time in the order received.
func Serialize(obs Observer, post func(func())) Observer {
	return &serialized{obs: obs, post: post}
}

type serialized struct {
	obs  Observer
	post func(func())
}

func (s *serialized) IceStateChanged(key ConnectionKey, state IceState) {
	s.post(func() { s.obs.IceStateChanged(key, state) })
}

func (s *serialized) IceCandidatesGathered(key ConnectionKey, candidates []signaling.IceCandidate) {
	s.post(func() { s.obs.IceCandidatesGathered(key, candidates) })
}

func (s *serialized) RemoteAccepted(key ConnectionKey) {
	s.post(func() { s.obs.RemoteAccepted(key) })
}

func (s *serialized) RemoteVideoStatus(key ConnectionKey, enabled bool) {
	s.post(func() { s.obs.RemoteVideoStatus(key, enabled) })
}

func (s *serialized) IncomingMedia(key ConnectionKey, stream MediaStream) {
	s.post(func() { s.obs.IncomingMedia(key, stream) })
}

func (s *serialized) RequestMembershipProof(id ClientID) {
	s.post(func() { s.obs.RequestMembershipProof(id) })
}

func (s *serialized) RequestGroupMembers(id ClientID) {
	s.post(func() { s.obs.RequestGroupMembers(id) })
}

func (s *serialized) GroupConnectionStateChanged(id ClientID, state ConnectionState) {
	s.post(func() { s.obs.GroupConnectionStateChanged(id, state) })
}

func (s *serialized) JoinStateChanged(id ClientID, state JoinState) {
	s.post(func() { s.obs.JoinStateChanged(id, state) })
}

func (s *serialized) RemoteDevicesChanged(id ClientID, devices []RemoteDeviceUpdate) {
	s.post(func() { s.obs.RemoteDevicesChanged(id, devices) })
}

func (s *serialized) IncomingVideoTrack(id ClientID, demuxID DemuxID, track VideoTrack) {
	s.post(func() { s.obs.IncomingVideoTrack(id, demuxID, track) })
}

func (s *serialized) PeekChanged(id ClientID, info *sfu.PeekInfo) {
	s.post(func() { s.obs.PeekChanged(id, info) })
}

func (s *serialized) Ended(id ClientID, reason GroupEndReason) {
	s.post(func() { s.obs.Ended(id, reason) })
}

func (s *serialized) SendCallMessage(recipient uuid.UUID, message []byte) {
	s.post(func() { s.obs.SendCallMessage(recipient, message) })
}
