package call

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

const (
	// DefaultMaxOfferAge is the oldest offer that still rings.
	DefaultMaxOfferAge = 120 * time.Second
	// DefaultSetupTimeout bounds the time from call creation to connection.
	DefaultSetupTimeout = 60 * time.Second
)

// Options tune a Manager. Zero values select the defaults.
type Options struct {
	MaxOfferAge  time.Duration
	SetupTimeout time.Duration
	TimeProvider clock.TimeProvider
}

func (o Options) withDefaults() Options {
	if o.MaxOfferAge <= 0 {
		o.MaxOfferAge = DefaultMaxOfferAge
	}
	if o.SetupTimeout <= 0 {
		o.SetupTimeout = DefaultSetupTimeout
	}
	o.TimeProvider = clock.Or(o.TimeProvider)
	return o
}

// Manager drives one-to-one calls. It holds at most one active Session.
type Manager struct {
	eng      engine.Engine
	observer Observer
	opts     Options
	active   *Session
}

// NewManager creates a manager that allocates media through eng and reports
// to observer.
func NewManager(eng engine.Engine, observer Observer, opts Options) *Manager {
	opts = opts.withDefaults()

	logrus.WithFields(logrus.Fields{
		"function":      "NewManager",
		"max_offer_age": opts.MaxOfferAge,
		"setup_timeout": opts.SetupTimeout,
	}).Debug("Call manager configured")

	return &Manager{
		eng:      eng,
		observer: observer,
		opts:     opts,
	}
}

// Active returns the active session, or nil.
func (m *Manager) Active() *Session {
	return m.active
}

func (m *Manager) lookup(function string, callID signaling.CallID) (*Session, error) {
	s := m.active
	if s == nil {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"call_id":  callID,
		}).Warn("No active call")
		return nil, ErrNoActiveCall
	}
	if s.callID != callID {
		logrus.WithFields(logrus.Fields{
			"function":       function,
			"call_id":        callID,
			"active_call_id": s.callID,
		}).Warn("Call id does not match the active call")
		return nil, ErrCallIDMismatch
	}
	return s, nil
}

func (m *Manager) lookupHandle(function string, key engine.ConnectionKey) (*Session, *ConnectionHandle, bool) {
	s := m.active
	if s == nil || s.callID != key.CallID {
		logrus.WithFields(logrus.Fields{
			"function":       function,
			"connection_key": key,
		}).Warn("Engine callback for an inactive call")
		return nil, nil, false
	}
	h, ok := s.handleFor(key)
	if !ok {
		s.logger(function).WithField("connection_key", key).Warn("Engine callback for an unknown connection")
		return nil, nil, false
	}
	return s, h, true
}

// end moves s to StateEnded, notifying the host, and clears the active slot.
func (m *Manager) end(s *Session, reason signaling.EndReason) {
	s.terminate(reason, true)
	if m.active == s {
		m.active = nil
	}
}

// fail ends s after telling the remote side the call is over. An outgoing
// call that never sent its offer has nobody to tell.
func (m *Manager) fail(s *Session, reason signaling.EndReason) {
	if s.state != StateEnded && (s.proceeded || s.direction == Incoming) {
		s.sendHangup(s.peerDestination(), signaling.Hangup{Type: signaling.HangupTypeNormal})
	}
	m.end(s, reason)
}

// StartOutgoingCall creates an outgoing call to remote and asks the host to
// authorize it through OnStartCall. The host answers with Proceed or Drop.
func (m *Manager) StartOutgoingCall(remote signaling.Remote, mediaType signaling.CallMediaType, localDeviceID signaling.DeviceID) (signaling.CallID, error) {
	if m.active != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "StartOutgoingCall",
			"active_call_id": m.active.callID,
		}).Error("Cannot start a call while another is active")
		m.observer.OnCallEvent(remote, signaling.CallEventEndedInternalFailure)
		return 0, ErrCallAlreadyActive
	}

	callID, err := signaling.NewCallID()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "StartOutgoingCall",
			"error":    err.Error(),
		}).Error("Failed to generate call id")
		m.observer.OnCallEvent(remote, signaling.CallEventEndedInternalFailure)
		return 0, err
	}

	s := newSession(m.observer, callID, remote, Outgoing, mediaType, localDeviceID, m.opts.TimeProvider.Now())
	m.active = s
	s.transition(StateProceeding)

	s.logger("StartOutgoingCall").WithField("media_type", mediaType).Info("Starting outgoing call")
	m.observer.OnStartCall(remote, callID, true, mediaType)
	return callID, nil
}

// Proceed lets the call use media resources. It creates the call context and
// the first connection, then sends the offer or the answer.
func (m *Manager) Proceed(callID signaling.CallID, network MediaContext, bandwidth signaling.BandwidthMode, enableCamera bool) error {
	s, err := m.lookup("Proceed", callID)
	if err != nil {
		return err
	}
	if s.proceeded || s.state != StateProceeding {
		s.logger("Proceed").Warn("Call already proceeded")
		return ErrInvalidState
	}

	ctx, err := NewContext(m.eng, callID, network, bandwidth, s.mediaType, enableCamera)
	if err != nil {
		s.logger("Proceed").WithField("error", err.Error()).Error("Failed to create call context")
		m.failProceed(s, signaling.EndReasonInternalFailure)
		return err
	}
	s.ctx = ctx
	s.proceeded = true

	deviceID := signaling.DeviceID(0)
	if s.direction == Incoming {
		deviceID = s.remoteDeviceID
	}
	key := engine.ConnectionKey{CallID: callID, DeviceID: deviceID}
	conn, err := m.eng.CreateConnection(key, ctx.ConnectionConfig(), ctx.Media())
	if err != nil {
		s.logger("Proceed").WithField("error", err.Error()).Error("Failed to create connection")
		m.failProceed(s, signaling.EndReasonInternalFailure)
		return err
	}
	h := s.addHandle(deviceID, conn)

	if s.direction == Outgoing {
		s.parentID = h.id
		offer, err := conn.CreateOffer()
		if err != nil {
			s.logger("Proceed").WithField("error", err.Error()).Error("Failed to create offer")
			m.end(s, signaling.EndReasonConnectionFailure)
			return err
		}
		s.sendOffer(offer)
		return nil
	}

	answer, err := conn.ApplyOffer(s.offer.Opaque)
	if err != nil {
		s.logger("Proceed").WithField("error", err.Error()).Error("Failed to apply offer")
		m.fail(s, signaling.EndReasonConnectionFailure)
		return err
	}
	s.sendAnswer(answer)
	s.flushIce(h)
	return nil
}

// failProceed ends a call whose resources could not be allocated. Only an
// incoming caller is waiting for an answer and needs a hangup.
func (m *Manager) failProceed(s *Session, reason signaling.EndReason) {
	if s.direction == Incoming {
		m.fail(s, reason)
		return
	}
	m.end(s, reason)
}

// Drop abandons the call without telling the remote side. It is a no-op
// when callID is not the active call.
func (m *Manager) Drop(callID signaling.CallID) {
	s, err := m.lookup("Drop", callID)
	if err != nil {
		return
	}
	m.end(s, signaling.EndReasonAppDropped)
}

// Reset abandons any active call silently: connections are closed and the
// context is disposed, but no events or messages are produced.
func (m *Manager) Reset() {
	s := m.active
	if s == nil {
		return
	}
	s.logger("Reset").Info("Resetting call manager")
	s.terminate(signaling.EndReasonLocalHangup, false)
	m.active = nil
}

// Hangup ends the active call locally. Calling it without an active call is
// a no-op.
func (m *Manager) Hangup() {
	s := m.active
	if s == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Hangup",
		}).Debug("No active call to hang up")
		return
	}
	s.logger("Hangup").Info("Local hangup")
	m.fail(s, signaling.EndReasonLocalHangup)
}

// AcceptCall accepts the incoming call. It is valid only while ringing
// locally.
func (m *Manager) AcceptCall(callID signaling.CallID) error {
	s, err := m.lookup("AcceptCall", callID)
	if err != nil {
		return err
	}
	if s.direction != Incoming || s.state != StateLocalRinging {
		s.logger("AcceptCall").Warn("Call cannot be accepted in this state")
		return ErrInvalidState
	}
	h, ok := s.handleForDevice(s.remoteDeviceID)
	if !ok {
		return ErrUnknownDevice
	}
	if err := h.conn.SendAccepted(); err != nil {
		s.logger("AcceptCall").WithField("error", err.Error()).Error("Failed to send accepted")
		m.fail(s, signaling.EndReasonConnectionFailure)
		return err
	}

	s.acceptedID = h.id
	s.transition(StateConnected)
	s.event(signaling.CallEventLocalConnected)
	s.deliverStream(h)
	return nil
}

// ReceivedOffer handles an offer. Expired offers, offers a linked device
// must ignore and offers arriving while another call is active never ring.
// An offer from the remote of an unconnected active call is glare and
// ResolveGlare decides which call survives.
func (m *Manager) ReceivedOffer(msg signaling.ReceivedOffer) error {
	fields := logrus.Fields{
		"function":  "ReceivedOffer",
		"call_id":   msg.CallID,
		"device_id": msg.SenderDeviceID,
		"age":       msg.Age,
	}
	if err := msg.Validate(); err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Error("Invalid offer")
		return err
	}

	if msg.Age > m.opts.MaxOfferAge {
		logrus.WithFields(fields).Info("Offer expired")
		m.observer.OnCallEvent(msg.Remote, signaling.CallEventReceivedOfferExpired)
		return nil
	}

	if !msg.ReceiverIsPrimary && !msg.SenderSupportsMultiRing {
		logrus.WithFields(fields).Info("Ignoring offer from caller without multi-ring support")
		m.observer.OnCallEvent(msg.Remote, signaling.CallEventIgnoreCallsFromNonMultiringCallers)
		return nil
	}

	if active := m.active; active != nil {
		if active.callID == msg.CallID {
			logrus.WithFields(fields).Warn("Duplicate offer for the active call")
			return nil
		}

		if !m.observer.CompareRemotes(active.remote, msg.Remote) || active.state.IsConnected() {
			logrus.WithFields(fields).WithField("active_call_id", active.callID).Info("Offer while another call is active")
			m.observer.OnCallEvent(msg.Remote, signaling.CallEventReceivedOfferWhileActive)
			m.observer.OnSendBusy(msg.CallID, msg.Remote, signaling.DeviceTo(msg.SenderDeviceID))
			return nil
		}

		winner := ResolveGlare(active.callID, msg.CallID)
		logrus.WithFields(fields).WithFields(logrus.Fields{
			"active_call_id": active.callID,
			"winner":         winner,
		}).Info("Glare detected")
		if winner == active.callID {
			m.observer.OnCallEvent(msg.Remote, signaling.CallEventReceivedOfferWithGlare)
			return nil
		}
		m.fail(active, signaling.EndReasonGlare)
	}

	s := newSession(m.observer, msg.CallID, msg.Remote, Incoming, msg.Offer.CallMediaType, msg.ReceiverDeviceID, m.opts.TimeProvider.Now())
	s.remoteDeviceID = msg.SenderDeviceID
	s.offer = msg.Offer
	m.active = s
	s.transition(StateProceeding)

	s.logger("ReceivedOffer").WithField("device_id", msg.SenderDeviceID).Info("Incoming call")
	m.observer.OnStartCall(msg.Remote, msg.CallID, false, msg.Offer.CallMediaType)
	return nil
}

// ReceivedAnswer handles an answer from one of the remote's devices. The
// first answer binds the offering connection to that device; later answers
// from other devices fork it.
func (m *Manager) ReceivedAnswer(msg signaling.ReceivedAnswer) error {
	if err := msg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReceivedAnswer",
			"call_id":  msg.CallID,
			"error":    err.Error(),
		}).Error("Invalid answer")
		return err
	}
	s, err := m.lookup("ReceivedAnswer", msg.CallID)
	if err != nil {
		return err
	}
	log := s.logger("ReceivedAnswer").WithField("device_id", msg.SenderDeviceID)

	if s.direction != Outgoing || !s.proceeded || s.state.IsConnected() {
		log.Warn("Ignoring answer in this state")
		return ErrInvalidState
	}
	if _, dup := s.handleForDevice(msg.SenderDeviceID); dup {
		log.Warn("Ignoring duplicate answer")
		return nil
	}
	parent, ok := s.handles.Get(s.parentID)
	if !ok {
		log.Warn("Offering connection is gone")
		return ErrInvalidState
	}

	h := parent
	if parent.deviceID == 0 {
		parent.deviceID = msg.SenderDeviceID
		s.byDevice[msg.SenderDeviceID] = parent.id
	} else {
		conn, err := parent.conn.Fork(engine.ConnectionKey{CallID: s.callID, DeviceID: msg.SenderDeviceID})
		if err != nil {
			log.WithField("error", err.Error()).Warn("Failed to fork connection")
			return err
		}
		h = s.addHandle(msg.SenderDeviceID, conn)
	}

	if err := h.conn.ApplyAnswer(msg.Answer.Opaque); err != nil {
		log.WithField("error", err.Error()).Error("Failed to apply answer")
		if h.id == s.parentID {
			m.fail(s, signaling.EndReasonConnectionFailure)
		} else {
			s.removeHandle(h)
		}
		return err
	}
	log.Debug("Answer applied")
	s.flushIce(h)
	return nil
}

// ReceivedIceCandidates applies or buffers candidates from a remote device.
func (m *Manager) ReceivedIceCandidates(msg signaling.ReceivedIce) error {
	if err := msg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReceivedIceCandidates",
			"call_id":  msg.CallID,
			"error":    err.Error(),
		}).Error("Invalid ICE message")
		return err
	}
	s, err := m.lookup("ReceivedIceCandidates", msg.CallID)
	if err != nil {
		return err
	}
	if s.direction == Incoming && msg.SenderDeviceID != s.remoteDeviceID {
		s.logger("ReceivedIceCandidates").WithField("device_id", msg.SenderDeviceID).Warn("Candidates from an unexpected device")
		return ErrUnknownDevice
	}

	if h, ok := s.handleForDevice(msg.SenderDeviceID); ok {
		h.addIceCandidates(msg.Candidates)
		return nil
	}
	s.bufferIce(msg.SenderDeviceID, msg.Candidates)
	return nil
}

// ReceivedHangup handles a hangup from a remote device.
func (m *Manager) ReceivedHangup(msg signaling.ReceivedHangup) error {
	if err := msg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReceivedHangup",
			"call_id":  msg.CallID,
			"error":    err.Error(),
		}).Error("Invalid hangup")
		return err
	}
	s, err := m.lookup("ReceivedHangup", msg.CallID)
	if err != nil {
		return err
	}
	log := s.logger("ReceivedHangup").WithFields(logrus.Fields{
		"device_id": msg.SenderDeviceID,
		"hangup":    msg.Hangup,
	})
	log.Info("Received hangup")

	if s.direction == Incoming {
		if msg.SenderDeviceID != s.remoteDeviceID {
			log.Warn("Hangup from an unexpected device")
			return ErrUnknownDevice
		}
		if msg.Hangup.Type != signaling.HangupTypeNormal && msg.Hangup.DeviceID == s.localDeviceID {
			log.Debug("Hangup refers to this device")
			return nil
		}
		m.end(s, signaling.ReasonForHangup(msg.Hangup.Type))
		return nil
	}

	if s.state.IsConnected() {
		accepted, ok := s.handles.Get(s.acceptedID)
		if !ok || accepted.deviceID != msg.SenderDeviceID {
			log.Debug("Ignoring hangup from a device that did not accept")
			return nil
		}
		m.end(s, signaling.ReasonForHangup(msg.Hangup.Type))
		return nil
	}

	if msg.Hangup.Type == signaling.HangupTypeNormal {
		s.sendHangup(signaling.BroadcastTo(), signaling.Hangup{Type: signaling.HangupTypeDeclined, DeviceID: msg.SenderDeviceID})
	}
	m.end(s, signaling.ReasonForHangup(msg.Hangup.Type))
	return nil
}

// ReceivedBusy handles a busy reply to an outgoing call.
func (m *Manager) ReceivedBusy(msg signaling.ReceivedBusy) error {
	if err := msg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReceivedBusy",
			"call_id":  msg.CallID,
			"error":    err.Error(),
		}).Error("Invalid busy")
		return err
	}
	s, err := m.lookup("ReceivedBusy", msg.CallID)
	if err != nil {
		return err
	}
	if s.direction != Outgoing || s.state.IsConnected() {
		s.logger("ReceivedBusy").Warn("Ignoring busy in this state")
		return ErrInvalidState
	}

	s.logger("ReceivedBusy").WithField("device_id", msg.SenderDeviceID).Info("Remote is busy")
	s.sendHangup(signaling.BroadcastTo(), signaling.Hangup{Type: signaling.HangupTypeBusy, DeviceID: msg.SenderDeviceID})
	m.end(s, signaling.EndReasonRemoteBusy)
	return nil
}

// MessageSent records that the oldest outstanding message of the call was
// delivered to the transport.
func (m *Manager) MessageSent(callID signaling.CallID) {
	s, err := m.lookup("MessageSent", callID)
	if err != nil {
		return
	}
	if t, ok := s.popSent(); ok {
		s.logger("MessageSent").WithField("message_type", t).Debug("Message sent")
	}
}

// MessageSendFailure records that the oldest outstanding message of the call
// could not be sent. Losing an offer, answer or hangup ends the call.
func (m *Manager) MessageSendFailure(callID signaling.CallID) {
	s, err := m.lookup("MessageSendFailure", callID)
	if err != nil {
		return
	}
	t, ok := s.popSent()
	if !ok {
		s.logger("MessageSendFailure").Warn("Send failure without an outstanding message")
		return
	}
	s.logger("MessageSendFailure").WithField("message_type", t).Warn("Message send failed")
	if t.Critical() {
		m.end(s, signaling.EndReasonSignalingFailure)
	}
}

// SetAudioEnable toggles the shared audio track of the active call.
func (m *Manager) SetAudioEnable(enabled bool) {
	s := m.active
	if s == nil || s.ctx == nil {
		logrus.WithFields(logrus.Fields{
			"function": "SetAudioEnable",
		}).Debug("No active connection")
		return
	}
	s.ctx.Media().SetAudioEnabled(enabled)
	s.handles.Each(func(_ uint32, h *ConnectionHandle) {
		h.setAudioEnabled(enabled)
	})
}

// SetVideoEnable toggles the shared video track of the active call and tells
// the remote side.
func (m *Manager) SetVideoEnable(enabled bool) {
	s := m.active
	if s == nil || s.ctx == nil {
		logrus.WithFields(logrus.Fields{
			"function": "SetVideoEnable",
		}).Debug("No active connection")
		return
	}
	s.ctx.Media().SetVideoEnabled(enabled)
	s.handles.Each(func(_ uint32, h *ConnectionHandle) {
		h.setVideoEnabled(enabled)
	})
}

// UpdateBandwidthMode applies mode to every connection of the active call.
func (m *Manager) UpdateBandwidthMode(mode signaling.BandwidthMode) {
	s := m.active
	if s == nil || s.ctx == nil {
		logrus.WithFields(logrus.Fields{
			"function": "UpdateBandwidthMode",
			"mode":     mode,
		}).Debug("No active connection")
		return
	}
	s.ctx.SetBandwidthMode(mode)
	s.handles.Each(func(_ uint32, h *ConnectionHandle) {
		h.setBandwidthMode(mode)
	})
}

// Tick enforces the setup timeout.
func (m *Manager) Tick() {
	s := m.active
	if s == nil || s.state.IsConnected() || s.state.IsTerminal() {
		return
	}
	if elapsed := m.opts.TimeProvider.Since(s.createdAt); elapsed > m.opts.SetupTimeout {
		s.logger("Tick").WithField("elapsed", elapsed).Warn("Call setup timed out")
		m.fail(s, signaling.EndReasonTimeout)
	}
}

// HandleIceStateChanged applies a connectivity change reported by the engine.
func (m *Manager) HandleIceStateChanged(key engine.ConnectionKey, state engine.IceState) {
	s, h, ok := m.lookupHandle("HandleIceStateChanged", key)
	if !ok {
		return
	}
	s.logger("HandleIceStateChanged").WithFields(logrus.Fields{
		"device_id": h.deviceID,
		"ice_state": state,
	}).Debug("ICE state changed")

	switch state {
	case engine.IceStateConnected:
		h.iceConnected = true
		switch {
		case s.state == StateProceeding && s.direction == Incoming:
			if s.transition(StateLocalRinging) {
				s.event(signaling.CallEventLocalRinging)
			}
		case s.state == StateProceeding && h.deviceID != 0:
			if s.transition(StateRemoteRinging) {
				s.event(signaling.CallEventRemoteRinging)
			}
		case s.state == StateReconnecting && h.id == s.acceptedID:
			if s.transition(StateConnected) {
				s.event(signaling.CallEventReconnected)
			}
		}

	case engine.IceStateDisconnected:
		h.iceConnected = false
		if s.state == StateConnected && h.id == s.acceptedID {
			if s.transition(StateReconnecting) {
				s.event(signaling.CallEventReconnecting)
			}
		}

	case engine.IceStateFailed:
		h.iceConnected = false
		if s.direction == Outgoing && !s.state.IsConnected() && s.handles.Len() > 1 && h.id != s.parentID {
			s.logger("HandleIceStateChanged").WithField("device_id", h.deviceID).Warn("Connection to one device failed")
			s.removeHandle(h)
			return
		}
		if s.state.IsConnected() && h.id != s.acceptedID {
			return
		}
		m.fail(s, signaling.EndReasonConnectionFailure)
	}
}

// HandleIceCandidatesGathered sends local candidates to the remote side.
func (m *Manager) HandleIceCandidatesGathered(key engine.ConnectionKey, candidates []signaling.IceCandidate) {
	s, h, ok := m.lookupHandle("HandleIceCandidatesGathered", key)
	if !ok || len(candidates) == 0 {
		return
	}
	dest := signaling.DeviceTo(h.deviceID)
	if s.direction == Outgoing && h.id == s.parentID {
		dest = signaling.BroadcastTo()
	}
	s.sendIce(dest, candidates)
}

// HandleRemoteAccepted connects an outgoing call accepted by one device and
// releases every other device.
func (m *Manager) HandleRemoteAccepted(key engine.ConnectionKey) {
	s, h, ok := m.lookupHandle("HandleRemoteAccepted", key)
	if !ok {
		return
	}
	log := s.logger("HandleRemoteAccepted").WithField("device_id", h.deviceID)
	if s.direction != Outgoing || s.state.IsConnected() || h.deviceID == 0 {
		log.Warn("Ignoring accept in this state")
		return
	}
	if s.state == StateProceeding {
		s.transition(StateRemoteRinging)
		s.event(signaling.CallEventRemoteRinging)
	}

	s.acceptedID = h.id
	for _, other := range s.Handles() {
		if other.id != h.id {
			s.removeHandle(other)
		}
	}
	s.sendHangup(signaling.BroadcastTo(), signaling.Hangup{Type: signaling.HangupTypeAccepted, DeviceID: h.deviceID})

	s.transition(StateConnected)
	log.Info("Remote accepted the call")
	s.event(signaling.CallEventRemoteConnected)
	s.deliverStream(h)
}

// HandleRemoteVideoStatus reports the remote camera state of the accepted
// connection.
func (m *Manager) HandleRemoteVideoStatus(key engine.ConnectionKey, enabled bool) {
	s, h, ok := m.lookupHandle("HandleRemoteVideoStatus", key)
	if !ok {
		return
	}
	if s.direction == Outgoing && h.id != s.acceptedID {
		return
	}
	if enabled {
		s.event(signaling.CallEventRemoteVideoEnable)
	} else {
		s.event(signaling.CallEventRemoteVideoDisable)
	}
}

// HandleIncomingMedia forwards incoming media of the accepted connection to
// the host. Media arriving earlier is held until the call is accepted.
func (m *Manager) HandleIncomingMedia(key engine.ConnectionKey, stream engine.MediaStream) {
	s, h, ok := m.lookupHandle("HandleIncomingMedia", key)
	if !ok {
		return
	}
	h.stream = stream
	if s.acceptedID != 0 && h.id == s.acceptedID {
		s.deliverStream(h)
	}
}

// Describe returns a short description of the active call for diagnostics.
func (m *Manager) Describe() string {
	s := m.active
	if s == nil {
		return "idle"
	}
	return fmt.Sprintf("%s %s %s handles=%d", s.callID, s.direction, s.state, s.handles.Len())
}
