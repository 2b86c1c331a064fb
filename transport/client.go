package transport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/limits"
	"github.com/opd-ai/callcore/signaling"
)

// Sink is the part of callcore.Coordinator a Client drives. Post must be
// safe from any goroutine; every other method is called from a posted
// closure.
type Sink interface {
	Post(fn func())

	MessageSent(callID signaling.CallID)
	MessageSendFailure(callID signaling.CallID)

	ReceivedOffer(msg signaling.ReceivedOffer) error
	ReceivedAnswer(msg signaling.ReceivedAnswer) error
	ReceivedIceCandidates(msg signaling.ReceivedIce) error
	ReceivedHangup(msg signaling.ReceivedHangup) error
	ReceivedBusy(msg signaling.ReceivedBusy) error
	ReceivedCallMessage(sender uuid.UUID, senderDevice signaling.DeviceID, message []byte, age time.Duration) error
}

// ClientOptions identifies the local device on the relay.
type ClientOptions struct {
	Peer    string
	Device  signaling.DeviceID
	Primary bool

	TimeProvider clock.TimeProvider
}

// Client is one device's connection to a Hub. Sends happen on the caller's
// goroutine; inbound envelopes are decoded on the read loop and delivered
// to the sink through Post.
type Client struct {
	conn *websocket.Conn
	opts ClientOptions
	sink Sink
	tp   clock.TimeProvider

	mu     sync.Mutex
	closed chan struct{}
	done   chan struct{}
}

// Dial connects to the hub at relayURL and starts the read loop.
func Dial(ctx context.Context, relayURL string, opts ClientOptions, sink Sink) (*Client, error) {
	if opts.Peer == "" {
		return nil, ErrInvalidPeer
	}
	if err := opts.Device.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("peer", opts.Peer)
	q.Set("device", strconv.FormatUint(uint64(opts.Device), 10))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Dial",
			"url":      relayURL,
			"error":    err.Error(),
		}).Error("Relay dial failed")
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		opts:   opts,
		sink:   sink,
		tp:     clock.Or(opts.TimeProvider),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()

	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"peer":     opts.Peer,
		"device":   opts.Device,
	}).Info("Connected to relay")
	return c, nil
}

// Done is closed when the read loop stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down and waits for the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil
	default:
	}
	close(c.closed)
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.mu.Unlock()

	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)

	c.conn.SetReadLimit(limits.MaxEnvelope)
	self := Receiver{Device: c.opts.Device, Primary: c.opts.Primary}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				logrus.WithFields(logrus.Fields{
					"function": "readLoop",
					"peer":     c.opts.Peer,
					"error":    err.Error(),
				}).Warn("Relay connection lost")
			}
			return
		}

		env, err := ParseEnvelope(data)
		if err == nil {
			var msg any
			msg, err = env.Decode(self, c.tp.Now())
			if err == nil {
				c.sink.Post(func() { c.deliver(env, msg) })
				continue
			}
		}
		logrus.WithFields(logrus.Fields{
			"function": "readLoop",
			"peer":     c.opts.Peer,
			"error":    err.Error(),
		}).Warn("Dropping inbound envelope")
	}
}

// deliver runs on the serial context.
func (c *Client) deliver(env Envelope, msg any) {
	var err error
	switch m := msg.(type) {
	case signaling.ReceivedOffer:
		err = c.sink.ReceivedOffer(m)
	case signaling.ReceivedAnswer:
		err = c.sink.ReceivedAnswer(m)
	case signaling.ReceivedIce:
		err = c.sink.ReceivedIceCandidates(m)
	case signaling.ReceivedHangup:
		err = c.sink.ReceivedHangup(m)
	case signaling.ReceivedBusy:
		err = c.sink.ReceivedBusy(m)
	case CallMessage:
		err = c.sink.ReceivedCallMessage(m.Sender, m.SenderDevice, m.Message, m.Age)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "deliver",
			"from":     env.From,
			"call_id":  env.CallID,
			"type":     env.Type,
			"error":    err.Error(),
		}).Warn("Coordinator rejected inbound message")
	}
}

func (c *Client) write(env Envelope) error {
	env.From = c.opts.Peer
	env.FromDevice = uint32(c.opts.Device)
	env.SentAt = c.tp.Now().UnixMilli()

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// sendSignal writes a one-to-one signaling message and reports the outcome
// to the sink when the call tracks it.
func (c *Client) sendSignal(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, env Envelope, tracked bool) {
	peer, ok := remote.(string)
	err := ErrInvalidPeer
	if ok && peer != "" {
		env.Kind = KindSignal
		env.CallID = uint64(callID)
		env.To, env.ToDevice = address(peer, dest)
		err = c.write(env)
	}

	fields := logrus.Fields{
		"function":    "sendSignal",
		"call_id":     callID,
		"type":        signaling.MessageType(env.Type),
		"destination": dest,
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Signaling send failed")
	} else {
		logrus.WithFields(fields).Debug("Signaling sent")
	}

	if !tracked {
		return
	}
	if err != nil {
		c.sink.Post(func() { c.sink.MessageSendFailure(callID) })
		return
	}
	c.sink.Post(func() { c.sink.MessageSent(callID) })
}

// OnSendOffer sends an offer to the remote peer.
func (c *Client) OnSendOffer(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, offer signaling.Offer) {
	c.sendSignal(callID, remote, dest, Envelope{
		Type:      int32(signaling.MessageTypeOffer),
		MediaType: int32(offer.CallMediaType),
		Opaque:    offer.Opaque,
		MultiRing: true,
	}, true)
}

// OnSendAnswer sends an answer to the remote peer.
func (c *Client) OnSendAnswer(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, answer signaling.Answer) {
	c.sendSignal(callID, remote, dest, Envelope{
		Type:      int32(signaling.MessageTypeAnswer),
		Opaque:    answer.Opaque,
		MultiRing: true,
	}, true)
}

// OnSendIceCandidates sends a batch of ICE candidates.
func (c *Client) OnSendIceCandidates(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, candidates []signaling.IceCandidate) {
	opaque := make([][]byte, 0, len(candidates))
	for _, ic := range candidates {
		opaque = append(opaque, ic.Opaque)
	}
	c.sendSignal(callID, remote, dest, Envelope{
		Type:       int32(signaling.MessageTypeIce),
		Candidates: opaque,
	}, true)
}

// OnSendHangup sends a hangup.
func (c *Client) OnSendHangup(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, hangup signaling.Hangup) {
	c.sendSignal(callID, remote, dest, Envelope{
		Type:         int32(signaling.MessageTypeHangup),
		HangupType:   int32(hangup.Type),
		HangupDevice: uint32(hangup.DeviceID),
	}, true)
}

// OnSendBusy sends a busy reply. Busy replies belong to a call that was
// never admitted, so no outcome is reported.
func (c *Client) OnSendBusy(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination) {
	c.sendSignal(callID, remote, dest, Envelope{Type: int32(signaling.MessageTypeBusy)}, false)
}

// OnSendCallMessage sends an opaque group call message to every device of
// recipient.
func (c *Client) OnSendCallMessage(recipient uuid.UUID, message []byte) {
	err := c.write(Envelope{
		Kind:   KindCallMessage,
		To:     recipient.String(),
		Opaque: message,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "OnSendCallMessage",
			"recipient": recipient,
			"error":     err.Error(),
		}).Warn("Call message send failed")
	}
}
