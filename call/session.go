package call

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

// Session is the state of one one-to-one call attempt.
type Session struct {
	callID         signaling.CallID
	remote         signaling.Remote
	direction      Direction
	mediaType      signaling.CallMediaType
	localDeviceID  signaling.DeviceID
	remoteDeviceID signaling.DeviceID
	offer          signaling.Offer

	state     State
	endReason signaling.EndReason
	createdAt time.Time
	proceeded bool

	ctx        *Context
	handles    *engine.Arena[*ConnectionHandle]
	byKey      map[engine.ConnectionKey]uint32
	byDevice   map[signaling.DeviceID]uint32
	parentID   uint32
	acceptedID uint32
	pendingIce map[signaling.DeviceID][]signaling.IceCandidate
	sendQueue  []signaling.MessageType

	observer Observer
}

func newSession(observer Observer, callID signaling.CallID, remote signaling.Remote, direction Direction, mediaType signaling.CallMediaType, localDeviceID signaling.DeviceID, now time.Time) *Session {
	return &Session{
		callID:        callID,
		remote:        remote,
		direction:     direction,
		mediaType:     mediaType,
		localDeviceID: localDeviceID,
		state:         StateIdle,
		createdAt:     now,
		handles:       engine.NewArena[*ConnectionHandle](),
		byKey:         make(map[engine.ConnectionKey]uint32),
		byDevice:      make(map[signaling.DeviceID]uint32),
		pendingIce:    make(map[signaling.DeviceID][]signaling.IceCandidate),
		observer:      observer,
	}
}

// CallID returns the id of the call.
func (s *Session) CallID() signaling.CallID { return s.callID }

// Remote returns the counterparty.
func (s *Session) Remote() signaling.Remote { return s.remote }

// Direction tells who originated the call.
func (s *Session) Direction() Direction { return s.direction }

// MediaType returns the proposed media type.
func (s *Session) MediaType() signaling.CallMediaType { return s.mediaType }

// State returns the current state.
func (s *Session) State() State { return s.state }

// RemoteDeviceID returns the device that sent the offer of an incoming
// call, or the accepting device of an outgoing call once known.
func (s *Session) RemoteDeviceID() signaling.DeviceID {
	if s.direction == Outgoing {
		if h, ok := s.handles.Get(s.acceptedID); ok {
			return h.deviceID
		}
		return 0
	}
	return s.remoteDeviceID
}

// EndReason returns why the call ended. It is meaningful only in StateEnded.
func (s *Session) EndReason() signaling.EndReason { return s.endReason }

// Context returns the call context, or nil before the call proceeded.
func (s *Session) Context() *Context { return s.ctx }

// Handles returns the live connection handles in creation order.
func (s *Session) Handles() []*ConnectionHandle {
	var out []*ConnectionHandle
	s.handles.Each(func(_ uint32, h *ConnectionHandle) {
		out = append(out, h)
	})
	return out
}

// PendingMessages returns the number of sent messages awaiting a result.
func (s *Session) PendingMessages() int {
	return len(s.sendQueue)
}

func (s *Session) logger(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function":  function,
		"call_id":   s.callID,
		"direction": s.direction,
		"state":     s.state,
	})
}

func (s *Session) transition(next State) bool {
	if !s.state.CanTransitionTo(next) {
		s.logger("transition").WithField("next", next).Warn("Invalid call state transition")
		return false
	}
	s.logger("transition").WithField("next", next).Info("Call state changed")
	s.state = next
	return true
}

func (s *Session) event(event signaling.CallEvent) {
	s.logger("event").WithField("event", event).Debug("Reporting call event")
	s.observer.OnCallEvent(s.remote, event)
}

func (s *Session) addHandle(deviceID signaling.DeviceID, conn engine.Connection) *ConnectionHandle {
	h := newConnectionHandle(deviceID, conn)
	h.id = s.handles.Insert(h)
	s.byKey[conn.Key()] = h.id
	if deviceID != 0 {
		s.byDevice[deviceID] = h.id
	}
	if s.ctx != nil {
		h.videoEnabled = s.mediaType == signaling.CallMediaTypeVideo
	}
	return h
}

func (s *Session) removeHandle(h *ConnectionHandle) {
	h.close()
	s.handles.Remove(h.id)
	delete(s.byKey, h.conn.Key())
	if id, ok := s.byDevice[h.deviceID]; ok && id == h.id {
		delete(s.byDevice, h.deviceID)
	}
}

func (s *Session) handleFor(key engine.ConnectionKey) (*ConnectionHandle, bool) {
	id, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return s.handles.Get(id)
}

func (s *Session) handleForDevice(deviceID signaling.DeviceID) (*ConnectionHandle, bool) {
	id, ok := s.byDevice[deviceID]
	if !ok {
		return nil, false
	}
	return s.handles.Get(id)
}

func (s *Session) bufferIce(deviceID signaling.DeviceID, candidates []signaling.IceCandidate) {
	s.pendingIce[deviceID] = append(s.pendingIce[deviceID], candidates...)
	s.logger("bufferIce").WithFields(logrus.Fields{
		"device_id": deviceID,
		"buffered":  len(s.pendingIce[deviceID]),
	}).Debug("Buffered ICE candidates")
}

func (s *Session) flushIce(h *ConnectionHandle) {
	if pending := s.pendingIce[h.deviceID]; len(pending) > 0 {
		delete(s.pendingIce, h.deviceID)
		h.addIceCandidates(pending)
	}
}

// peerDestination addresses the remote side of the call: every device for
// an outgoing call, the offering device for an incoming one.
func (s *Session) peerDestination() signaling.Destination {
	if s.direction == Outgoing {
		return signaling.BroadcastTo()
	}
	return signaling.DeviceTo(s.remoteDeviceID)
}

func (s *Session) queue(t signaling.MessageType) {
	s.sendQueue = append(s.sendQueue, t)
}

func (s *Session) sendOffer(opaque []byte) {
	s.queue(signaling.MessageTypeOffer)
	s.observer.OnSendOffer(s.callID, s.remote, signaling.BroadcastTo(), signaling.Offer{CallMediaType: s.mediaType, Opaque: opaque})
}

func (s *Session) sendAnswer(opaque []byte) {
	s.queue(signaling.MessageTypeAnswer)
	s.observer.OnSendAnswer(s.callID, s.remote, signaling.DeviceTo(s.remoteDeviceID), signaling.Answer{Opaque: opaque})
}

func (s *Session) sendIce(dest signaling.Destination, candidates []signaling.IceCandidate) {
	s.queue(signaling.MessageTypeIce)
	s.observer.OnSendIceCandidates(s.callID, s.remote, dest, candidates)
}

func (s *Session) sendHangup(dest signaling.Destination, hangup signaling.Hangup) {
	s.logger("sendHangup").WithFields(logrus.Fields{
		"destination": dest,
		"hangup":      hangup,
	}).Debug("Sending hangup")
	s.queue(signaling.MessageTypeHangup)
	s.observer.OnSendHangup(s.callID, s.remote, dest, hangup)
}

// popSent removes the oldest outstanding message type.
func (s *Session) popSent() (signaling.MessageType, bool) {
	if len(s.sendQueue) == 0 {
		return 0, false
	}
	t := s.sendQueue[0]
	s.sendQueue = s.sendQueue[1:]
	return t, true
}

func (s *Session) deliverStream(h *ConnectionHandle) {
	if h.stream == nil {
		return
	}
	stream := h.stream
	h.stream = nil
	s.observer.OnIncomingMedia(s.remote, stream)
}

// terminate closes every connection, disposes the call context and moves to
// StateEnded. With notify set the host sees the end event and
// OnCallConcluded.
func (s *Session) terminate(reason signaling.EndReason, notify bool) {
	if s.state == StateEnded {
		return
	}
	s.logger("terminate").WithFields(logrus.Fields{
		"reason":  reason,
		"handles": s.handles.Len(),
	}).Info("Call ended")

	s.state = StateEnded
	s.endReason = reason
	if notify {
		s.event(reason.Event())
	}

	for _, h := range s.handles.Drain() {
		h.close()
	}
	clear(s.byKey)
	clear(s.byDevice)
	clear(s.pendingIce)
	s.ctx.Dispose()

	if notify {
		s.observer.OnCallConcluded(s.remote)
	}
}
