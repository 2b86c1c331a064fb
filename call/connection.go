package call

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

// ConnectionHandle wraps the connection to one remote device. It is owned by
// its Session and lives in the session's arena.
type ConnectionHandle struct {
	id       uint32
	deviceID signaling.DeviceID
	conn     engine.Connection

	audioEnabled bool
	videoEnabled bool
	iceConnected bool
	closed       bool

	// stream holds incoming media until the handle is the accepted one.
	stream engine.MediaStream
}

func newConnectionHandle(deviceID signaling.DeviceID, conn engine.Connection) *ConnectionHandle {
	return &ConnectionHandle{
		deviceID:     deviceID,
		conn:         conn,
		audioEnabled: true,
	}
}

// ID is the arena id of the handle.
func (h *ConnectionHandle) ID() uint32 {
	return h.id
}

// DeviceID is the remote device the handle talks to. It is zero for the
// offering connection of an outgoing call until an answer binds it.
func (h *ConnectionHandle) DeviceID() signaling.DeviceID {
	return h.deviceID
}

// Key is the engine key of the underlying connection.
func (h *ConnectionHandle) Key() engine.ConnectionKey {
	return h.conn.Key()
}

// AudioEnabled reports the audio flag of the handle.
func (h *ConnectionHandle) AudioEnabled() bool {
	return h.audioEnabled
}

// VideoEnabled reports the video flag of the handle.
func (h *ConnectionHandle) VideoEnabled() bool {
	return h.videoEnabled
}

func (h *ConnectionHandle) setAudioEnabled(enabled bool) {
	h.audioEnabled = enabled
}

func (h *ConnectionHandle) setVideoEnabled(enabled bool) {
	if h.closed {
		return
	}
	h.videoEnabled = enabled
	if err := h.conn.SendVideoStatus(enabled); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "setVideoEnabled",
			"device_id": h.deviceID,
			"error":     err.Error(),
		}).Warn("Failed to send video status")
	}
}

func (h *ConnectionHandle) setBandwidthMode(mode signaling.BandwidthMode) {
	if h.closed {
		return
	}
	if err := h.conn.SetBandwidthMode(mode); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "setBandwidthMode",
			"device_id": h.deviceID,
			"mode":      mode,
			"error":     err.Error(),
		}).Warn("Failed to apply bandwidth mode")
	}
}

func (h *ConnectionHandle) addIceCandidates(candidates []signaling.IceCandidate) {
	if h.closed || len(candidates) == 0 {
		return
	}
	if err := h.conn.AddIceCandidates(candidates); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "addIceCandidates",
			"device_id": h.deviceID,
			"count":     len(candidates),
			"error":     err.Error(),
		}).Warn("Failed to add ICE candidates")
	}
}

// close tears down the connection. The shared local tracks belong to the
// call context and survive.
func (h *ConnectionHandle) close() {
	if h.closed {
		return
	}
	h.closed = true
	if err := h.conn.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "close",
			"device_id": h.deviceID,
			"error":     err.Error(),
		}).Warn("Failed to close connection")
	}
}
