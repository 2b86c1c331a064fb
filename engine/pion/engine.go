package pion

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
)

// Engine creates pion peer connections.
type Engine struct {
	api *webrtc.API

	mu       sync.Mutex
	observer engine.Observer
}

// New registers the default codecs and interceptors and returns an engine.
func New() (*Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	logrus.WithField("function", "New").Info("Pion engine created")
	return &Engine{api: api}, nil
}

// SetObserver implements engine.Engine.
func (e *Engine) SetObserver(obs engine.Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = obs
}

func (e *Engine) currentObserver() engine.Observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observer
}

// CreateLocalMedia implements engine.Engine.
func (e *Engine) CreateLocalMedia(enableCamera bool) (engine.LocalMedia, error) {
	return newLocalMedia(enableCamera)
}

// CreateConnection implements engine.Engine.
func (e *Engine) CreateConnection(key engine.ConnectionKey, cfg engine.ConnectionConfig, media engine.LocalMedia) (engine.Connection, error) {
	obs := e.currentObserver()
	if obs == nil {
		return nil, ErrNoObserver
	}

	pc, err := e.api.NewPeerConnection(configuration(cfg))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateConnection",
			"key":      key,
			"error":    err.Error(),
		}).Error("Failed to create peer connection")
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	c, err := newConnection(key, cfg, pc, obs)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	if lm, ok := media.(*LocalMedia); ok {
		if err := lm.attach(pc); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "CreateConnection",
		"key":       key,
		"hide_ip":   cfg.HideIP,
		"bandwidth": cfg.BandwidthMode,
	}).Debug("Peer connection created")
	return c, nil
}

// configuration maps the call configuration onto pion's. Hiding the IP
// restricts ICE to relay candidates.
func configuration(cfg engine.ConnectionConfig) webrtc.Configuration {
	conf := webrtc.Configuration{
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		conf.ICEServers = append(conf.ICEServers, server)
	}
	if cfg.HideIP {
		conf.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	if cfg.Certificate != nil {
		conf.Certificates = []webrtc.Certificate{
			webrtc.CertificateFromX509(cfg.Certificate.PrivateKey, cfg.Certificate.X509),
		}
	}
	return conf
}

// mediaFactory satisfies engine.MediaFactory; it holds nothing because
// group calls are unsupported.
type mediaFactory struct{}

func (mediaFactory) Dispose() {}

// CreateMediaFactory implements engine.Engine.
func (e *Engine) CreateMediaFactory() (engine.MediaFactory, error) {
	return mediaFactory{}, nil
}

// CreateGroupClient implements engine.Engine.
func (e *Engine) CreateGroupClient(id engine.ClientID, _ []byte, sfuURL string, _ engine.MediaFactory) (engine.GroupClient, error) {
	logrus.WithFields(logrus.Fields{
		"function":  "CreateGroupClient",
		"client_id": id,
		"sfu_url":   sfuURL,
	}).Warn("Group calls are not supported by the pion engine")
	return nil, ErrGroupCallsUnsupported
}
