package enginetest

import (
	"fmt"
	"sync"

	"github.com/opd-ai/callcore/crypto"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

// Connection is an in-memory engine.Connection.
type Connection struct {
	engine *Engine
	key    engine.ConnectionKey
	cfg    engine.ConnectionConfig
	media  engine.LocalMedia

	mu           sync.Mutex
	negotiated   bool
	remotePublic [32]byte
	srtp         *crypto.SRTPKeys
	candidates   []signaling.IceCandidate
	bandwidth    signaling.BandwidthMode
	accepted     bool
	videoStatus  []bool
	closed       bool
	failNext     bool
}

// Key implements engine.Connection.
func (c *Connection) Key() engine.ConnectionKey {
	return c.key
}

// Config returns the configuration the connection was created with.
func (c *Connection) Config() engine.ConnectionConfig {
	return c.cfg
}

// Media returns the local media attached to the connection.
func (c *Connection) Media() engine.LocalMedia {
	return c.media
}

// FailNext makes the next negotiation call return ErrInjected.
func (c *Connection) FailNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = true
}

func (c *Connection) takeFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fail := c.failNext
	c.failNext = false
	return fail
}

// CreateOffer implements engine.Connection.
func (c *Connection) CreateOffer() ([]byte, error) {
	if c.takeFailure() {
		return nil, fmt.Errorf("create offer: %w", ErrInjected)
	}
	c.gathered()
	return encodeDescription(offerTag, c.cfg.KeyPair.Public), nil
}

// ApplyOffer implements engine.Connection.
func (c *Connection) ApplyOffer(offer []byte) ([]byte, error) {
	if c.takeFailure() {
		return nil, fmt.Errorf("apply offer: %w", ErrInjected)
	}
	remote, err := decodeDescription(offerTag, offer)
	if err != nil {
		return nil, err
	}
	if err := c.negotiate(remote); err != nil {
		return nil, err
	}
	c.gathered()
	c.connected()
	return encodeDescription(answerTag, c.cfg.KeyPair.Public), nil
}

// ApplyAnswer implements engine.Connection.
func (c *Connection) ApplyAnswer(answer []byte) error {
	if c.takeFailure() {
		return fmt.Errorf("apply answer: %w", ErrInjected)
	}
	remote, err := decodeDescription(answerTag, answer)
	if err != nil {
		return err
	}
	if err := c.negotiate(remote); err != nil {
		return err
	}
	c.connected()
	return nil
}

func (c *Connection) negotiate(remote [32]byte) error {
	keys, err := crypto.DeriveSRTPKeys(c.cfg.KeyPair, remote, uint64(c.key.CallID))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remotePublic = remote
	c.srtp = keys
	c.negotiated = true
	return nil
}

func (c *Connection) gathered() {
	if !c.engine.GatherCandidates {
		return
	}
	if obs := c.engine.Observer(); obs != nil {
		candidate := signaling.IceCandidate{Opaque: []byte(fmt.Sprintf("candidate:%s:%s", c.engine.Name, c.key))}
		obs.IceCandidatesGathered(c.key, []signaling.IceCandidate{candidate})
	}
}

func (c *Connection) connected() {
	if !c.engine.AutoConnect {
		return
	}
	c.SetIceState(engine.IceStateConnected)
}

// SetIceState reports an ICE state change to the engine observer.
func (c *Connection) SetIceState(state engine.IceState) {
	if obs := c.engine.Observer(); obs != nil {
		obs.IceStateChanged(c.key, state)
	}
}

// DeliverMedia reports an incoming media stream to the engine observer.
func (c *Connection) DeliverMedia(stream engine.MediaStream) {
	if obs := c.engine.Observer(); obs != nil {
		obs.IncomingMedia(c.key, stream)
	}
}

// Fork implements engine.Connection.
func (c *Connection) Fork(key engine.ConnectionKey) (engine.Connection, error) {
	if c.engine.FailConnection {
		return nil, fmt.Errorf("fork connection %s: %w", key, ErrInjected)
	}
	return c.engine.newConnection(key, c.cfg, c.media), nil
}

// AddIceCandidates implements engine.Connection.
func (c *Connection) AddIceCandidates(candidates []signaling.IceCandidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidates...)
	return nil
}

// SendAccepted implements engine.Connection.
func (c *Connection) SendAccepted() error {
	c.mu.Lock()
	c.accepted = true
	c.mu.Unlock()

	if peer := c.engine.network.peerOf(c); peer != nil {
		if obs := peer.engine.Observer(); obs != nil {
			obs.RemoteAccepted(peer.key)
		}
	}
	return nil
}

// SendVideoStatus implements engine.Connection.
func (c *Connection) SendVideoStatus(enabled bool) error {
	c.mu.Lock()
	c.videoStatus = append(c.videoStatus, enabled)
	c.mu.Unlock()

	if peer := c.engine.network.peerOf(c); peer != nil {
		if obs := peer.engine.Observer(); obs != nil {
			obs.RemoteVideoStatus(peer.key, enabled)
		}
	}
	return nil
}

// SetBandwidthMode implements engine.Connection.
func (c *Connection) SetBandwidthMode(mode signaling.BandwidthMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bandwidth = mode
	return nil
}

// Close implements engine.Connection. The shared local media is not touched.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.srtp != nil {
		c.srtp.Wipe()
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Negotiated reports whether a remote description was applied.
func (c *Connection) Negotiated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}

// SRTPKeys returns the derived SRTP keys, or nil before negotiation.
func (c *Connection) SRTPKeys() *crypto.SRTPKeys {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srtp == nil {
		return nil
	}
	keys := *c.srtp
	return &keys
}

// Candidates returns the remote candidates added so far.
func (c *Connection) Candidates() []signaling.IceCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]signaling.IceCandidate(nil), c.candidates...)
}

// BandwidthMode returns the last applied bandwidth mode.
func (c *Connection) BandwidthMode() signaling.BandwidthMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bandwidth
}

// Accepted reports whether SendAccepted was called.
func (c *Connection) Accepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

// VideoStatus returns every video status sent.
func (c *Connection) VideoStatus() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.videoStatus...)
}

var _ engine.Connection = (*Connection)(nil)
