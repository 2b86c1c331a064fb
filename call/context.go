package call

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/crypto"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

// MediaContext is the host-supplied network configuration for a call.
type MediaContext struct {
	ICEServers []engine.IceServer
	// HideIP restricts ICE to relay candidates.
	HideIP bool
}

// Context owns the resources shared by every connection of one call: the
// local audio and video tracks, the DTLS certificate and the X25519 key
// pair. Connections borrow them; only Dispose releases them.
type Context struct {
	callID      signaling.CallID
	media       engine.LocalMedia
	certificate *crypto.Certificate
	keyPair     *crypto.KeyPair
	network     MediaContext
	bandwidth   signaling.BandwidthMode
	mediaType   signaling.CallMediaType
	disposed    bool
}

// NewContext allocates the shared resources for a call. On failure nothing
// is left allocated.
func NewContext(eng engine.Engine, callID signaling.CallID, network MediaContext, bandwidth signaling.BandwidthMode, mediaType signaling.CallMediaType, enableCamera bool) (*Context, error) {
	cert, err := crypto.GenerateCertificate()
	if err != nil {
		return nil, fmt.Errorf("call context: %w", err)
	}
	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("call context: %w", err)
	}
	media, err := eng.CreateLocalMedia(enableCamera)
	if err != nil {
		keyPair.Wipe()
		return nil, fmt.Errorf("call context: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewContext",
		"call_id":     callID,
		"hide_ip":     network.HideIP,
		"ice_servers": len(network.ICEServers),
		"bandwidth":   bandwidth,
		"camera":      enableCamera,
	}).Debug("Call context created")

	return &Context{
		callID:      callID,
		media:       media,
		certificate: cert,
		keyPair:     keyPair,
		network:     network,
		bandwidth:   bandwidth,
		mediaType:   mediaType,
	}, nil
}

// ConnectionConfig returns the configuration every connection of the call
// is built from.
func (c *Context) ConnectionConfig() engine.ConnectionConfig {
	return engine.ConnectionConfig{
		ICEServers:    c.network.ICEServers,
		HideIP:        c.network.HideIP,
		Certificate:   c.certificate,
		KeyPair:       c.keyPair,
		BandwidthMode: c.bandwidth,
		MediaType:     c.mediaType,
	}
}

// Media returns the shared local tracks.
func (c *Context) Media() engine.LocalMedia {
	return c.media
}

// BandwidthMode returns the current bandwidth mode.
func (c *Context) BandwidthMode() signaling.BandwidthMode {
	return c.bandwidth
}

// SetBandwidthMode records the mode used for connections created later.
func (c *Context) SetBandwidthMode(mode signaling.BandwidthMode) {
	c.bandwidth = mode
}

// Disposed reports whether Dispose was called.
func (c *Context) Disposed() bool {
	return c.disposed
}

// Dispose releases the shared tracks and wipes the key pair. Only the first
// call has an effect.
func (c *Context) Dispose() {
	if c == nil || c.disposed {
		return
	}
	c.disposed = true
	if c.media != nil {
		c.media.Dispose()
	}
	c.keyPair.Wipe()

	logrus.WithFields(logrus.Fields{
		"function": "Dispose",
		"call_id":  c.callID,
	}).Debug("Call context disposed")
}
