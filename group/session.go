package group

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

const (
	// DefaultVideoRequestDebounce is the window over which renderer changes
	// collapse into one RequestVideo.
	DefaultVideoRequestDebounce = 200 * time.Millisecond
	// DefaultPeekInterval is the period of peeks while not connected.
	DefaultPeekInterval = 10 * time.Second
)

// Options tune a Session. Zero values select the defaults.
type Options struct {
	VideoRequestDebounce time.Duration
	PeekInterval         time.Duration
	TimeProvider         clock.TimeProvider
}

func (o Options) withDefaults() Options {
	if o.VideoRequestDebounce <= 0 {
		o.VideoRequestDebounce = DefaultVideoRequestDebounce
	}
	if o.PeekInterval <= 0 {
		o.PeekInterval = DefaultPeekInterval
	}
	o.TimeProvider = clock.Or(o.TimeProvider)
	return o
}

// Observer receives the notifications of a group session.
type Observer interface {
	RequestMembershipProof(s *Session)
	RequestGroupMembers(s *Session)
	OnConnectionStateChanged(s *Session)
	OnJoinStateChanged(s *Session)
	OnRemoteDevicesChanged(s *Session)
	OnIncomingVideoTrack(s *Session, device *RemoteDeviceState)
	OnPeekChanged(s *Session)
	OnEnded(s *Session, reason engine.GroupEndReason)
}

// Peeker performs the SFU peek for a session. The answer must come back
// through the session's HandlePeekResponse with the same request id; a nil
// PeekInfo reports a failed peek.
type Peeker interface {
	RequestGroupPeek(id engine.ClientID, requestID request.ID, sfuURL string, proof []byte, members []sfu.GroupMember)
}

// Session is one group call.
type Session struct {
	id       engine.ClientID
	groupID  []byte
	sfuURL   string
	client   engine.GroupClient
	observer Observer
	peeker   Peeker
	opts     Options

	connectionState engine.ConnectionState
	joinState       engine.JoinState
	audioMuted      bool
	videoMuted      bool
	bandwidthMode   signaling.BandwidthMode

	devices   map[engine.DemuxID]*RemoteDeviceState
	renderers map[engine.DemuxID]map[string]renderer
	video     coalescer
	lastSent  []engine.VideoRequest

	proof        []byte
	members      []sfu.GroupMember
	peekInfo     *sfu.PeekInfo
	peeks        *request.Tracker[*sfu.PeekInfo]
	peekInFlight request.ID
	nextPeekAt   time.Time

	ended     bool
	endReason engine.GroupEndReason
}

// New creates a session around a group client the engine already
// allocated. The session starts NotConnected and NotJoined.
func New(id engine.ClientID, groupID []byte, sfuURL string, client engine.GroupClient, observer Observer, peeker Peeker, opts Options) *Session {
	opts = opts.withDefaults()

	s := &Session{
		id:            id,
		groupID:       slices.Clone(groupID),
		sfuURL:        sfuURL,
		client:        client,
		observer:      observer,
		peeker:        peeker,
		opts:          opts,
		bandwidthMode: signaling.BandwidthModeNormal,
		devices:       make(map[engine.DemuxID]*RemoteDeviceState),
		renderers:     make(map[engine.DemuxID]map[string]renderer),
		video:         coalescer{window: opts.VideoRequestDebounce},
		peeks:         request.NewTracker[*sfu.PeekInfo](fmt.Sprintf("group-peek-%d", id)),
	}

	s.logger("New").WithFields(logrus.Fields{
		"sfu_url":       sfuURL,
		"debounce":      opts.VideoRequestDebounce,
		"peek_interval": opts.PeekInterval,
	}).Info("Group call created")

	return s
}

func (s *Session) logger(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function":         function,
		"client_id":        s.id,
		"connection_state": s.connectionState,
		"join_state":       s.joinState,
	})
}

// ID returns the client id.
func (s *Session) ID() engine.ClientID { return s.id }

// GroupID returns the group this call belongs to.
func (s *Session) GroupID() []byte { return slices.Clone(s.groupID) }

// SFUURL returns the SFU hosting the call.
func (s *Session) SFUURL() string { return s.sfuURL }

// ConnectionState returns the transport state.
func (s *Session) ConnectionState() engine.ConnectionState { return s.connectionState }

// JoinState returns the local participation state.
func (s *Session) JoinState() engine.JoinState { return s.joinState }

// OutgoingAudioMuted reports the last requested outgoing audio mute.
func (s *Session) OutgoingAudioMuted() bool { return s.audioMuted }

// OutgoingVideoMuted reports the last requested outgoing video mute.
func (s *Session) OutgoingVideoMuted() bool { return s.videoMuted }

// BandwidthMode returns the last requested bandwidth mode.
func (s *Session) BandwidthMode() signaling.BandwidthMode { return s.bandwidthMode }

// PeekInfo returns the cached membership snapshot, or nil before the first
// peek.
func (s *Session) PeekInfo() *sfu.PeekInfo { return s.peekInfo }

// Ended reports whether the engine ended the call, and why.
func (s *Session) Ended() (engine.GroupEndReason, bool) { return s.endReason, s.ended }

// RemoteDevices returns the remote devices ordered by demux id.
func (s *Session) RemoteDevices() []*RemoteDeviceState {
	devices := make([]*RemoteDeviceState, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	slices.SortFunc(devices, func(a, b *RemoteDeviceState) int {
		return cmp.Compare(a.DemuxID, b.DemuxID)
	})
	return devices
}

// RemoteDevice returns the device with the given demux id.
func (s *Session) RemoteDevice(demux engine.DemuxID) (*RemoteDeviceState, bool) {
	d, ok := s.devices[demux]
	return d, ok
}

// LastVideoRequests returns the batch most recently sent to the engine.
func (s *Session) LastVideoRequests() []engine.VideoRequest {
	return slices.Clone(s.lastSent)
}

// command runs one client call unless the session has ended.
func (s *Session) command(function string, fn func() error) error {
	if s.ended {
		s.logger(function).Warn("Command after the group call ended")
		return ErrSessionEnded
	}
	if err := fn(); err != nil {
		s.logger(function).WithField("error", err.Error()).Error("Group client rejected command")
		return fmt.Errorf("%s: %w", function, err)
	}
	s.logger(function).Debug("Command issued")
	return nil
}

// Connect opens the transport to the SFU without joining.
func (s *Session) Connect() error {
	return s.command("Connect", s.client.Connect)
}

// Join starts sending and receiving media.
func (s *Session) Join() error {
	return s.command("Join", s.client.Join)
}

// Leave stops participating but keeps the transport open.
func (s *Session) Leave() error {
	return s.command("Leave", s.client.Leave)
}

// Disconnect asks the engine to end the call. The session stays registered
// until the engine reports Ended.
func (s *Session) Disconnect() error {
	return s.command("Disconnect", s.client.Disconnect)
}

// SetOutgoingAudioMuted mutes or unmutes the local microphone.
func (s *Session) SetOutgoingAudioMuted(muted bool) error {
	return s.command("SetOutgoingAudioMuted", func() error {
		if err := s.client.SetOutgoingAudioMuted(muted); err != nil {
			return err
		}
		s.audioMuted = muted
		return nil
	})
}

// SetOutgoingVideoMuted mutes or unmutes the local camera.
func (s *Session) SetOutgoingVideoMuted(muted bool) error {
	return s.command("SetOutgoingVideoMuted", func() error {
		if err := s.client.SetOutgoingVideoMuted(muted); err != nil {
			return err
		}
		s.videoMuted = muted
		return nil
	})
}

// ResendMediaKeys sends the local media keys to every participant again.
func (s *Session) ResendMediaKeys() error {
	return s.command("ResendMediaKeys", s.client.ResendMediaKeys)
}

// SetBandwidthMode changes the send bitrate hint.
func (s *Session) SetBandwidthMode(mode signaling.BandwidthMode) error {
	return s.command("SetBandwidthMode", func() error {
		if err := s.client.SetBandwidthMode(mode); err != nil {
			return err
		}
		s.bandwidthMode = mode
		return nil
	})
}

// SetMembershipProof supplies the credential requested through
// RequestMembershipProof. It is also used for peeks.
func (s *Session) SetMembershipProof(proof []byte) error {
	return s.command("SetMembershipProof", func() error {
		if err := s.client.SetMembershipProof(proof); err != nil {
			return err
		}
		s.proof = slices.Clone(proof)
		return nil
	})
}

// SetGroupMembers supplies the member list requested through
// RequestGroupMembers.
func (s *Session) SetGroupMembers(members []sfu.GroupMember) error {
	return s.command("SetGroupMembers", func() error {
		if err := s.client.SetGroupMembers(members); err != nil {
			return err
		}
		s.members = slices.Clone(members)
		return nil
	})
}

// SetVideoRenderer records that consumer renders the device's video at the
// given size. A nil framerate leaves it uncapped. The resulting request is
// sent after the debounce window.
func (s *Session) SetVideoRenderer(demux engine.DemuxID, consumer string, width, height uint16, framerate *uint16) error {
	if s.ended {
		return ErrSessionEnded
	}
	if consumer == "" {
		return ErrInvalidRenderer
	}
	if _, ok := s.devices[demux]; !ok {
		s.logger("SetVideoRenderer").WithField("demux_id", demux).Warn("Renderer for unknown device")
		return ErrUnknownDevice
	}

	r := renderer{width: width, height: height}
	if framerate != nil {
		f := *framerate
		r.framerate = &f
	}
	if s.renderers[demux] == nil {
		s.renderers[demux] = make(map[string]renderer)
	}
	s.renderers[demux][consumer] = r
	s.video.mark(s.opts.TimeProvider.Now())
	return nil
}

// RemoveVideoRenderer drops one consumer of the device's video.
func (s *Session) RemoveVideoRenderer(demux engine.DemuxID, consumer string) error {
	if s.ended {
		return ErrSessionEnded
	}
	consumers, ok := s.renderers[demux]
	if !ok {
		return nil
	}
	if _, ok := consumers[consumer]; !ok {
		return nil
	}
	delete(consumers, consumer)
	if len(consumers) == 0 {
		delete(s.renderers, demux)
	}
	s.video.mark(s.opts.TimeProvider.Now())
	return nil
}

// RequestPeek asks the SFU for a fresh membership snapshot using the
// current proof and member list.
func (s *Session) RequestPeek() (request.ID, error) {
	if s.ended {
		return 0, ErrSessionEnded
	}
	if len(s.proof) == 0 {
		s.logger("RequestPeek").Warn("Peek without a membership proof")
		return 0, ErrNoMembershipProof
	}

	var id request.ID
	id = s.peeks.Add(func(info *sfu.PeekInfo) {
		if s.peekInFlight == id {
			s.peekInFlight = 0
		}
		s.applyPeek("RequestPeek", info)
	})
	s.peekInFlight = id
	s.nextPeekAt = s.opts.TimeProvider.Now().Add(s.opts.PeekInterval)

	s.logger("RequestPeek").WithField("request_id", id).Debug("Peek requested")
	s.peeker.RequestGroupPeek(s.id, id, s.sfuURL, slices.Clone(s.proof), slices.Clone(s.members))
	return id, nil
}

// HandlePeekResponse resolves a peek issued by RequestPeek. It returns
// false when the request id is unknown.
func (s *Session) HandlePeekResponse(requestID request.ID, info *sfu.PeekInfo) bool {
	return s.peeks.Resolve(requestID, info)
}

// applyPeek replaces the cached snapshot. A nil info is a failed peek and
// keeps the previous snapshot.
func (s *Session) applyPeek(function string, info *sfu.PeekInfo) {
	if s.ended {
		return
	}
	if info == nil {
		s.logger(function).Warn("Peek failed, keeping previous snapshot")
		return
	}
	s.peekInfo = info
	s.logger(function).WithFields(logrus.Fields{
		"era_id":       info.EraID(),
		"device_count": info.DeviceCount(),
	}).Debug("Peek info updated")
	s.observer.OnPeekChanged(s)
}

// HandleRequestMembershipProof forwards the engine's request for a proof.
func (s *Session) HandleRequestMembershipProof() {
	if s.ended {
		return
	}
	s.observer.RequestMembershipProof(s)
}

// HandleRequestGroupMembers forwards the engine's request for the member
// list.
func (s *Session) HandleRequestGroupMembers() {
	if s.ended {
		return
	}
	s.observer.RequestGroupMembers(s)
}

// HandleConnectionStateChanged records a new transport state. Repeating
// the current state does nothing.
func (s *Session) HandleConnectionStateChanged(state engine.ConnectionState) {
	if s.ended || s.connectionState == state {
		return
	}
	s.logger("HandleConnectionStateChanged").WithField("next", state).Info("Group connection state changed")
	s.connectionState = state
	s.observer.OnConnectionStateChanged(s)
}

// HandleJoinStateChanged records a new join state. Repeating the current
// state does nothing.
func (s *Session) HandleJoinStateChanged(state engine.JoinState) {
	if s.ended || s.joinState == state {
		return
	}
	s.logger("HandleJoinStateChanged").WithField("next", state).Info("Group join state changed")
	s.joinState = state
	s.observer.OnJoinStateChanged(s)
}

// HandleRemoteDevicesChanged replaces the device map contents with
// updates. Existing devices are updated in place, absent ones are removed
// and release their video track.
func (s *Session) HandleRemoteDevicesChanged(updates []engine.RemoteDeviceUpdate) {
	if s.ended {
		return
	}

	changed := false
	seen := make(map[engine.DemuxID]struct{}, len(updates))
	for _, u := range updates {
		seen[u.DemuxID] = struct{}{}
		if d, ok := s.devices[u.DemuxID]; ok {
			if d.apply(u) {
				changed = true
			}
			continue
		}
		s.devices[u.DemuxID] = newRemoteDeviceState(u)
		changed = true
	}

	for demux, d := range s.devices {
		if _, ok := seen[demux]; ok {
			continue
		}
		d.releaseTrack()
		delete(s.devices, demux)
		delete(s.renderers, demux)
		changed = true
	}

	if !changed {
		s.logger("HandleRemoteDevicesChanged").Debug("Remote devices unchanged")
		return
	}

	s.logger("HandleRemoteDevicesChanged").WithField("devices", len(s.devices)).Debug("Remote devices changed")
	s.video.mark(s.opts.TimeProvider.Now())
	s.observer.OnRemoteDevicesChanged(s)
}

// HandleIncomingVideoTrack attaches track to its device. It returns false
// when the device is not in the call; the caller then owns the track.
func (s *Session) HandleIncomingVideoTrack(demux engine.DemuxID, track engine.VideoTrack) bool {
	if s.ended {
		return false
	}
	d, ok := s.devices[demux]
	if !ok {
		s.logger("HandleIncomingVideoTrack").WithField("demux_id", demux).Warn("Video track for unknown device")
		return false
	}
	if d.track != track {
		d.releaseTrack()
		d.track = track
	}
	s.observer.OnIncomingVideoTrack(s, d)
	return true
}

// HandlePeekChanged replaces the cached snapshot with one pushed by the
// engine.
func (s *Session) HandlePeekChanged(info *sfu.PeekInfo) {
	if info == nil {
		info = sfu.EmptyPeekInfo()
	}
	s.applyPeek("HandlePeekChanged", info)
}

// HandleCallMessage delivers a call message from another participant.
func (s *Session) HandleCallMessage(sender uuid.UUID, senderDevice signaling.DeviceID, message []byte) error {
	return s.command("HandleCallMessage", func() error {
		return s.client.HandleCallMessage(sender, senderDevice, message)
	})
}

// HandleEnded finishes the session. Devices are discarded and their tracks
// released. Only the first call has an effect.
func (s *Session) HandleEnded(reason engine.GroupEndReason) {
	if s.ended {
		s.logger("HandleEnded").WithField("reason", reason).Warn("Group call already ended")
		return
	}
	s.ended = true
	s.endReason = reason

	for demux, d := range s.devices {
		d.releaseTrack()
		delete(s.devices, demux)
	}
	clear(s.renderers)
	s.video.reset()
	if s.peekInFlight != 0 {
		s.peeks.Abandon(s.peekInFlight)
		s.peekInFlight = 0
	}

	if err := s.client.Close(); err != nil {
		s.logger("HandleEnded").WithField("error", err.Error()).Warn("Closing group client failed")
	}

	s.logger("HandleEnded").WithFields(logrus.Fields{
		"reason":   reason,
		"category": Category(reason),
	}).Info("Group call ended")
	s.observer.OnEnded(s, reason)
}

// Tick flushes due video requests and starts periodic peeks.
func (s *Session) Tick() {
	if s.ended {
		return
	}
	now := s.opts.TimeProvider.Now()

	if s.video.due(now) {
		s.flushVideoRequests()
	}

	if s.connectionState == engine.NotConnected && len(s.proof) > 0 && !now.Before(s.nextPeekAt) {
		// An unanswered peek older than one interval is given up on.
		if s.peekInFlight != 0 {
			s.logger("Tick").WithField("request_id", s.peekInFlight).Warn("Abandoning unanswered peek")
			s.peeks.Abandon(s.peekInFlight)
			s.peekInFlight = 0
		}
		if _, err := s.RequestPeek(); err != nil {
			s.logger("Tick").WithField("error", err.Error()).Warn("Periodic peek failed")
		}
	}
}

func (s *Session) flushVideoRequests() {
	requests := computeRequests(s.devices, s.renderers)
	if sameRequests(requests, s.lastSent) {
		s.logger("flushVideoRequests").Debug("Video requests unchanged")
		return
	}
	if err := s.client.RequestVideo(requests); err != nil {
		s.logger("flushVideoRequests").WithField("error", err.Error()).Error("Group client rejected video requests")
		return
	}
	s.lastSent = requests
	s.logger("flushVideoRequests").WithField("requests", len(requests)).Debug("Video requests sent")
}
