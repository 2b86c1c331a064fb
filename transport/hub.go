package transport

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/limits"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 256
)

// peerConn is one registered device. Frames queued on send are written by
// writePump; send is closed when the device unregisters.
type peerConn struct {
	peer   string
	device uint32
	conn   *websocket.Conn
	send   chan []byte
}

// Hub relays envelopes between connected peer devices. Peers connect with
// the query parameters peer and device; a second connection for the same
// device replaces the first.
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	peers  map[string]map[uint32]*peerConn
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		peers: make(map[string]map[uint32]*peerConn),
	}
}

// ServeHTTP upgrades the request and serves the device until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	peer := r.URL.Query().Get("peer")
	device, err := strconv.ParseUint(r.URL.Query().Get("device"), 10, 32)
	if peer == "" || err != nil || device == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "ServeHTTP",
			"remote":   r.RemoteAddr,
			"query":    r.URL.RawQuery,
		}).Warn("Rejecting connection without peer and device")
		http.Error(w, "peer and device are required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ServeHTTP",
			"peer":     peer,
			"error":    err.Error(),
		}).Warn("Websocket upgrade failed")
		return
	}

	p := &peerConn{peer: peer, device: uint32(device), conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(p) {
		conn.Close()
		return
	}

	go h.writePump(p)
	h.readPump(p)
}

func (h *Hub) register(p *peerConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	devices, ok := h.peers[p.peer]
	if !ok {
		devices = make(map[uint32]*peerConn)
		h.peers[p.peer] = devices
	}
	if old, ok := devices[p.device]; ok {
		close(old.send)
	}
	devices[p.device] = p

	logrus.WithFields(logrus.Fields{
		"function": "register",
		"peer":     p.peer,
		"device":   p.device,
	}).Info("Peer device connected")
	return true
}

// unregister removes p unless it was already replaced.
func (h *Hub) unregister(p *peerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	devices := h.peers[p.peer]
	if devices[p.device] != p {
		return
	}
	delete(devices, p.device)
	if len(devices) == 0 {
		delete(h.peers, p.peer)
	}
	close(p.send)

	logrus.WithFields(logrus.Fields{
		"function": "unregister",
		"peer":     p.peer,
		"device":   p.device,
	}).Info("Peer device disconnected")
}

func (h *Hub) readPump(p *peerConn) {
	defer func() {
		h.unregister(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(limits.MaxEnvelope)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"function": "readPump",
					"peer":     p.peer,
					"error":    err.Error(),
				}).Warn("Unexpected close")
			}
			return
		}

		env, err := ParseEnvelope(data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readPump",
				"peer":     p.peer,
				"error":    err.Error(),
			}).Warn("Dropping invalid envelope")
			continue
		}
		if env.From != p.peer || env.FromDevice != p.device {
			logrus.WithFields(logrus.Fields{
				"function": "readPump",
				"peer":     p.peer,
				"from":     env.From,
			}).Warn("Dropping envelope with forged sender")
			continue
		}
		h.route(p, env.To, env.ToDevice, data)
	}
}

// route queues data for the addressed devices other than the sender. A
// device whose buffer is full misses the frame.
func (h *Hub) route(from *peerConn, to string, device uint32, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, target := range h.peers[to] {
		if target == from || (device != 0 && id != device) {
			continue
		}
		select {
		case target.send <- data:
			delivered++
		default:
			logrus.WithFields(logrus.Fields{
				"function": "route",
				"peer":     to,
				"device":   id,
			}).Warn("Send buffer full, dropping frame")
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "route",
		"from":      from.peer,
		"to":        to,
		"device":    device,
		"delivered": delivered,
	}).Debug("Relayed envelope")
}

func (h *Hub) writePump(p *peerConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "writePump",
					"peer":     p.peer,
					"error":    err.Error(),
				}).Warn("Write failed")
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Peers returns the names of connected peers in order.
func (h *Hub) Peers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.peers))
	for name := range h.peers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Devices returns the connected device ids of peer in order.
func (h *Hub) Devices(peer string) []uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uint32, 0, len(h.peers[peer]))
	for id := range h.peers[peer] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close disconnects every device and refuses new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for name, devices := range h.peers {
		for _, p := range devices {
			close(p.send)
		}
		delete(h.peers, name)
	}
	logrus.WithField("function", "Close").Info("Hub closed")
}
