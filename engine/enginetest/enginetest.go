// Package enginetest provides an in-memory engine.Engine for tests.
//
// Connections created by engines attached to the same Network find each
// other by call id once an offer has been applied. Offers and answers carry
// the X25519 public key of the call context, so both ends of a loopback
// connection derive the same SRTP keys the way a real engine would.
package enginetest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

var (
	// ErrInjected is returned by operations a test asked to fail.
	ErrInjected = errors.New("injected failure")
	// ErrMalformedPayload indicates an opaque payload this engine did not
	// produce.
	ErrMalformedPayload = errors.New("malformed loopback payload")
)

const (
	offerTag  = 'O'
	answerTag = 'A'
)

// Network links the engines of several simulated devices.
type Network struct {
	mu      sync.Mutex
	engines []*Engine
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{}
}

// NewEngine creates an engine attached to the network.
func (n *Network) NewEngine(name string) *Engine {
	e := NewEngine(name)
	e.network = n
	n.mu.Lock()
	n.engines = append(n.engines, e)
	n.mu.Unlock()
	return e
}

// peerOf finds the negotiated connection for the same call on another engine.
func (n *Network) peerOf(c *Connection) *Connection {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	engines := append([]*Engine(nil), n.engines...)
	n.mu.Unlock()

	for _, e := range engines {
		if e == c.engine {
			continue
		}
		for _, other := range e.Connections() {
			if other.key.CallID != c.key.CallID || other.Closed() || !other.Negotiated() {
				continue
			}
			if bytes.Equal(other.remotePublic[:], c.cfg.KeyPair.Public[:]) {
				return other
			}
		}
	}
	return nil
}

// Engine is an in-memory engine.Engine. Fields named Fail* make the
// matching operation return ErrInjected.
type Engine struct {
	Name string

	FailLocalMedia   bool
	FailConnection   bool
	FailMediaFactory bool
	FailGroupClient  bool

	// AutoConnect reports IceStateConnected as soon as a connection has
	// applied the remote description.
	AutoConnect bool
	// GatherCandidates reports one local candidate per connection after
	// its local description is created.
	GatherCandidates bool

	network *Network

	mu          sync.Mutex
	observer    engine.Observer
	media       []*LocalMedia
	connections []*Connection
	factories   []*MediaFactory
	clients     []*GroupClient
}

// NewEngine creates an engine outside any network.
func NewEngine(name string) *Engine {
	return &Engine{Name: name, AutoConnect: true}
}

// SetObserver implements engine.Engine.
func (e *Engine) SetObserver(obs engine.Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = obs
}

// Observer returns the installed observer so tests can emit callbacks.
func (e *Engine) Observer() engine.Observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observer
}

// CreateLocalMedia implements engine.Engine.
func (e *Engine) CreateLocalMedia(enableCamera bool) (engine.LocalMedia, error) {
	if e.FailLocalMedia {
		return nil, fmt.Errorf("create local media: %w", ErrInjected)
	}
	m := &LocalMedia{audio: true, video: enableCamera}
	e.mu.Lock()
	e.media = append(e.media, m)
	e.mu.Unlock()
	return m, nil
}

// CreateConnection implements engine.Engine.
func (e *Engine) CreateConnection(key engine.ConnectionKey, cfg engine.ConnectionConfig, media engine.LocalMedia) (engine.Connection, error) {
	if e.FailConnection {
		return nil, fmt.Errorf("create connection %s: %w", key, ErrInjected)
	}
	if cfg.KeyPair == nil || cfg.Certificate == nil {
		return nil, fmt.Errorf("create connection %s: missing call credentials", key)
	}
	return e.newConnection(key, cfg, media), nil
}

func (e *Engine) newConnection(key engine.ConnectionKey, cfg engine.ConnectionConfig, media engine.LocalMedia) *Connection {
	c := &Connection{engine: e, key: key, cfg: cfg, media: media, bandwidth: cfg.BandwidthMode}
	e.mu.Lock()
	e.connections = append(e.connections, c)
	e.mu.Unlock()
	return c
}

// CreateMediaFactory implements engine.Engine.
func (e *Engine) CreateMediaFactory() (engine.MediaFactory, error) {
	if e.FailMediaFactory {
		return nil, fmt.Errorf("create media factory: %w", ErrInjected)
	}
	f := &MediaFactory{}
	e.mu.Lock()
	e.factories = append(e.factories, f)
	e.mu.Unlock()
	return f, nil
}

// CreateGroupClient implements engine.Engine.
func (e *Engine) CreateGroupClient(id engine.ClientID, groupID []byte, sfuURL string, factory engine.MediaFactory) (engine.GroupClient, error) {
	if e.FailGroupClient {
		return nil, fmt.Errorf("create group client: %w", ErrInjected)
	}
	if factory == nil {
		return nil, errors.New("create group client: nil media factory")
	}
	c := &GroupClient{ID: id, GroupID: append([]byte(nil), groupID...), SFUURL: sfuURL}
	e.mu.Lock()
	e.clients = append(e.clients, c)
	e.mu.Unlock()
	return c, nil
}

// LocalMedia returns every local media object created so far.
func (e *Engine) LocalMedia() []*LocalMedia {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*LocalMedia(nil), e.media...)
}

// Connections returns every connection created so far, closed or not.
func (e *Engine) Connections() []*Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Connection(nil), e.connections...)
}

// OpenConnections returns the connections that are not closed.
func (e *Engine) OpenConnections() []*Connection {
	var open []*Connection
	for _, c := range e.Connections() {
		if !c.Closed() {
			open = append(open, c)
		}
	}
	return open
}

// Connection returns the most recent connection created for key.
func (e *Engine) Connection(key engine.ConnectionKey) *Connection {
	conns := e.Connections()
	for i := len(conns) - 1; i >= 0; i-- {
		if conns[i].key == key {
			return conns[i]
		}
	}
	return nil
}

// MediaFactories returns every factory created so far.
func (e *Engine) MediaFactories() []*MediaFactory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*MediaFactory(nil), e.factories...)
}

// GroupClients returns every group client created so far.
func (e *Engine) GroupClients() []*GroupClient {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*GroupClient(nil), e.clients...)
}

// GroupClient returns the client created for id.
func (e *Engine) GroupClient(id engine.ClientID) *GroupClient {
	for _, c := range e.GroupClients() {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// LocalMedia is an in-memory engine.LocalMedia.
type LocalMedia struct {
	mu       sync.Mutex
	audio    bool
	video    bool
	disposed int
}

// SetAudioEnabled implements engine.LocalMedia.
func (m *LocalMedia) SetAudioEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = enabled
}

// SetVideoEnabled implements engine.LocalMedia.
func (m *LocalMedia) SetVideoEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.video = enabled
}

// Dispose implements engine.LocalMedia.
func (m *LocalMedia) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed++
}

// AudioEnabled reports the audio track flag.
func (m *LocalMedia) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

// VideoEnabled reports the video track flag.
func (m *LocalMedia) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

// DisposeCount reports how many times Dispose was called.
func (m *LocalMedia) DisposeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// MediaFactory is an in-memory engine.MediaFactory.
type MediaFactory struct {
	mu       sync.Mutex
	disposed int
}

// Dispose implements engine.MediaFactory.
func (f *MediaFactory) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed++
}

// DisposeCount reports how many times Dispose was called.
func (f *MediaFactory) DisposeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// VideoTrack is an in-memory engine.VideoTrack.
type VideoTrack struct {
	mu       sync.Mutex
	released int
}

// Release implements engine.VideoTrack.
func (t *VideoTrack) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released++
}

// ReleaseCount reports how many times Release was called.
func (t *VideoTrack) ReleaseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// GroupClient records every command a group session issues.
type GroupClient struct {
	ID      engine.ClientID
	GroupID []byte
	SFUURL  string

	mu              sync.Mutex
	connected       bool
	joined          bool
	audioMuted      bool
	videoMuted      bool
	mediaKeyResends int
	bandwidth       signaling.BandwidthMode
	videoRequests   [][]engine.VideoRequest
	proofs          [][]byte
	members         [][]sfu.GroupMember
	messages        [][]byte
	closed          bool
}

func (c *GroupClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *GroupClient) Join() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = true
	return nil
}

func (c *GroupClient) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = false
	return nil
}

func (c *GroupClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.joined = false
	return nil
}

func (c *GroupClient) SetOutgoingAudioMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioMuted = muted
	return nil
}

func (c *GroupClient) SetOutgoingVideoMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoMuted = muted
	return nil
}

func (c *GroupClient) ResendMediaKeys() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaKeyResends++
	return nil
}

func (c *GroupClient) SetBandwidthMode(mode signaling.BandwidthMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bandwidth = mode
	return nil
}

func (c *GroupClient) RequestVideo(requests []engine.VideoRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoRequests = append(c.videoRequests, append([]engine.VideoRequest(nil), requests...))
	return nil
}

func (c *GroupClient) SetMembershipProof(proof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proofs = append(c.proofs, append([]byte(nil), proof...))
	return nil
}

func (c *GroupClient) SetGroupMembers(members []sfu.GroupMember) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, append([]sfu.GroupMember(nil), members...))
	return nil
}

func (c *GroupClient) HandleCallMessage(sender uuid.UUID, senderDevice signaling.DeviceID, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), message...))
	return nil
}

func (c *GroupClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Connected reports whether Connect was called without a later Disconnect.
func (c *GroupClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Joined reports whether Join was called without a later Leave.
func (c *GroupClient) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Muted reports the outgoing audio and video mute flags.
func (c *GroupClient) Muted() (audio, video bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioMuted, c.videoMuted
}

// MediaKeyResends counts ResendMediaKeys calls.
func (c *GroupClient) MediaKeyResends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaKeyResends
}

// BandwidthMode returns the last applied bandwidth mode.
func (c *GroupClient) BandwidthMode() signaling.BandwidthMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bandwidth
}

// VideoRequests returns every RequestVideo batch in order.
func (c *GroupClient) VideoRequests() [][]engine.VideoRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]engine.VideoRequest(nil), c.videoRequests...)
}

// Proofs returns every membership proof received.
func (c *GroupClient) Proofs() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.proofs...)
}

// Members returns every member list received.
func (c *GroupClient) Members() [][]sfu.GroupMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]sfu.GroupMember(nil), c.members...)
}

// Messages returns every call message delivered.
func (c *GroupClient) Messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

// Closed reports whether Close was called.
func (c *GroupClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func encodeDescription(tag byte, public [32]byte) []byte {
	return append([]byte{tag}, public[:]...)
}

func decodeDescription(tag byte, data []byte) ([32]byte, error) {
	var public [32]byte
	if len(data) != 33 || data[0] != tag {
		return public, ErrMalformedPayload
	}
	copy(public[:], data[1:])
	return public, nil
}

var _ engine.Engine = (*Engine)(nil)
