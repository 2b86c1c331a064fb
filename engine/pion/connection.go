package pion

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

const (
	channelLabel    = "callcore"
	messageAccepted = "accepted"
	messageVideo    = "video"
)

// channelMessage is a notification on the call's data channel.
type channelMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled,omitempty"`
}

// Connection wraps one webrtc.PeerConnection. Notifications sent before
// the data channel opens are queued and flushed on open.
type Connection struct {
	key engine.ConnectionKey
	pc  *webrtc.PeerConnection
	dc  *webrtc.DataChannel
	obs engine.Observer

	mu        sync.Mutex
	bandwidth signaling.BandwidthMode
	outbox    [][]byte
	closed    bool
}

// newConnection wires pc's callbacks to obs. Media keys come from DTLS-SRTP,
// so cfg.KeyPair is not used.
func newConnection(key engine.ConnectionKey, cfg engine.ConnectionConfig, pc *webrtc.PeerConnection, obs engine.Observer) (*Connection, error) {
	negotiated := true
	id := uint16(0)
	dc, err := pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Negotiated: &negotiated, ID: &id})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	c := &Connection{key: key, pc: pc, dc: dc, obs: obs, bandwidth: cfg.BandwidthMode}

	pc.OnICECandidate(c.onICECandidate)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.logger("OnICEConnectionStateChange").WithField("state", state).Debug("ICE state changed")
		obs.IceStateChanged(key, iceState(state))
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger("OnTrack").WithField("kind", track.Kind()).Info("Incoming media")
		obs.IncomingMedia(key, track)
	})
	dc.OnOpen(c.flush)
	dc.OnMessage(c.onMessage)

	return c, nil
}

func (c *Connection) logger(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function": function,
		"key":      c.key,
	})
}

func iceState(s webrtc.ICEConnectionState) engine.IceState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return engine.IceStateChecking
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return engine.IceStateConnected
	case webrtc.ICEConnectionStateDisconnected:
		return engine.IceStateDisconnected
	case webrtc.ICEConnectionStateFailed:
		return engine.IceStateFailed
	case webrtc.ICEConnectionStateClosed:
		return engine.IceStateClosed
	default:
		return engine.IceStateNew
	}
}

func (c *Connection) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}
	data, err := json.Marshal(candidate.ToJSON())
	if err != nil {
		c.logger("onICECandidate").WithField("error", err.Error()).Warn("Cannot encode candidate")
		return
	}
	c.obs.IceCandidatesGathered(c.key, []signaling.IceCandidate{{Opaque: data}})
}

func (c *Connection) onMessage(msg webrtc.DataChannelMessage) {
	var m channelMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		c.logger("onMessage").WithField("error", err.Error()).Warn("Dropping malformed channel message")
		return
	}
	switch m.Type {
	case messageAccepted:
		c.obs.RemoteAccepted(c.key)
	case messageVideo:
		c.obs.RemoteVideoStatus(c.key, m.Enabled)
	default:
		c.logger("onMessage").WithField("type", m.Type).Warn("Unknown channel message")
	}
}

// Key implements engine.Connection.
func (c *Connection) Key() engine.ConnectionKey {
	return c.key
}

func (c *Connection) currentBandwidth() signaling.BandwidthMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bandwidth
}

// CreateOffer implements engine.Connection.
func (c *Connection) CreateOffer() ([]byte, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local offer: %w", err)
	}
	desc, err := withBandwidth(offer.SDP, c.currentBandwidth())
	if err != nil {
		return nil, err
	}
	return []byte(desc), nil
}

// ApplyOffer implements engine.Connection.
func (c *Connection) ApplyOffer(offer []byte) ([]byte, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	if kbps, ok := advertisedBandwidth(remote.SDP); ok {
		c.logger("ApplyOffer").WithField("remote_kbps", kbps).Debug("Remote bandwidth limit")
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	desc, err := withBandwidth(answer.SDP, c.currentBandwidth())
	if err != nil {
		return nil, err
	}
	return []byte(desc), nil
}

// ApplyAnswer implements engine.Connection.
func (c *Connection) ApplyAnswer(answer []byte) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(answer)}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// Fork implements engine.Connection.
func (c *Connection) Fork(key engine.ConnectionKey) (engine.Connection, error) {
	c.logger("Fork").WithField("fork_key", key).Warn("Cannot fork a pion peer connection")
	return nil, ErrForkUnsupported
}

// AddIceCandidates implements engine.Connection.
func (c *Connection) AddIceCandidates(candidates []signaling.IceCandidate) error {
	for _, ic := range candidates {
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(ic.Opaque, &init); err != nil {
			return fmt.Errorf("decode candidate: %w", err)
		}
		if err := c.pc.AddICECandidate(init); err != nil {
			return fmt.Errorf("add candidate: %w", err)
		}
	}
	return nil
}

// SendAccepted implements engine.Connection.
func (c *Connection) SendAccepted() error {
	return c.send(channelMessage{Type: messageAccepted})
}

// SendVideoStatus implements engine.Connection.
func (c *Connection) SendVideoStatus(enabled bool) error {
	return c.send(channelMessage{Type: messageVideo, Enabled: enabled})
}

func (c *Connection) send(m channelMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		c.outbox = append(c.outbox, data)
		return nil
	}
	return c.dc.Send(data)
}

func (c *Connection) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, data := range c.outbox {
		if err := c.dc.Send(data); err != nil {
			c.logger("flush").WithField("error", err.Error()).Warn("Queued channel message lost")
		}
	}
	c.outbox = nil
}

// SetBandwidthMode implements engine.Connection. The mode is advertised in
// the next offer or answer; senders already running are not capped.
func (c *Connection) SetBandwidthMode(mode signaling.BandwidthMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	c.bandwidth = mode
	c.logger("SetBandwidthMode").WithField("mode", mode).Debug("Bandwidth mode updated")
	return nil
}

// Close implements engine.Connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.outbox = nil
	c.mu.Unlock()

	return c.pc.Close()
}
