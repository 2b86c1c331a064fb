package callcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// Coordinator is the façade over one-to-one and group calls. It owns the
// call manager, the group call registry, the shared group media factory
// and the request trackers for HTTP and peek requests.
type Coordinator struct {
	eng      engine.Engine
	observer Observer
	opts     Options

	calls   *call.Manager
	groups  *engine.Arena[*group.Session]
	factory engine.MediaFactory

	httpRequests *request.Tracker[signaling.HTTPResponse]
	peeks        *request.Tracker[*sfu.PeekInfo]

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	closed  bool
}

// NewCoordinator creates a coordinator driving eng and reporting to
// observer. It installs itself as the engine's observer; engine callbacks
// are queued and run by Iterate.
func NewCoordinator(eng engine.Engine, observer Observer, opts Options) *Coordinator {
	opts = opts.withDefaults()

	c := &Coordinator{
		eng:          eng,
		observer:     observer,
		opts:         opts,
		groups:       engine.NewArena[*group.Session](),
		httpRequests: request.NewTracker[signaling.HTTPResponse]("http"),
		peeks:        request.NewTracker[*sfu.PeekInfo]("peek"),
		wake:         make(chan struct{}, 1),
	}
	c.calls = call.NewManager(eng, observer, opts.callOptions())
	eng.SetObserver(engine.Serialize(engineCallbacks{c}, c.Post))

	logrus.WithFields(logrus.Fields{
		"function":           "NewCoordinator",
		"iteration_interval": opts.IterationInterval,
	}).Info("Coordinator created")

	return c
}

// Post queues fn to run on the serial execution context. It is safe to
// call from any goroutine. Closures posted after Close are dropped.
func (c *Coordinator) Post(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		logrus.WithField("function", "Post").Debug("Dropping closure posted after close")
		return
	}
	c.pending = append(c.pending, fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) takePending() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	fns := c.pending
	c.pending = nil
	return fns
}

// Iterate runs every posted closure, including closures posted while it
// runs, and then drives the time-based work of all calls.
func (c *Coordinator) Iterate() {
	for {
		fns := c.takePending()
		if len(fns) == 0 {
			break
		}
		for _, fn := range fns {
			fn()
		}
	}

	c.calls.Tick()
	c.groups.Each(func(_ uint32, s *group.Session) {
		s.Tick()
	})
}

// IterationInterval returns the recommended interval between Iterate
// calls.
func (c *Coordinator) IterationInterval() time.Duration {
	return c.opts.IterationInterval
}

// Run is the serial execution context. It calls Iterate every
// IterationInterval and whenever a closure is posted, until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.IterationInterval)
	defer ticker.Stop()

	logrus.WithField("function", "Run").Debug("Coordinator loop started")
	for {
		select {
		case <-ctx.Done():
			logrus.WithField("function", "Run").Debug("Coordinator loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Iterate()
		case <-c.wake:
			c.Iterate()
		}
	}
}

// Close abandons the one-to-one call, ends every group call and disposes
// the shared media factory. Further closures are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pending = nil
	c.mu.Unlock()

	c.calls.Reset()
	for _, s := range c.groups.Drain() {
		if err := s.Disconnect(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Close",
				"client_id": s.ID(),
				"error":     err.Error(),
			}).Warn("Disconnecting group call failed")
		}
		s.HandleEnded(engine.DeviceExplicitlyDisconnected)
	}
	if c.factory != nil {
		c.factory.Dispose()
		c.factory = nil
	}

	logrus.WithField("function", "Close").Info("Coordinator closed")
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ActiveCall returns the active one-to-one call, or nil.
func (c *Coordinator) ActiveCall() *call.Session {
	return c.calls.Active()
}

// StartCall starts an outgoing one-to-one call. The host authorizes it in
// OnStartCall and answers with Proceed or Drop.
func (c *Coordinator) StartCall(remote signaling.Remote, mediaType signaling.CallMediaType, localDeviceID signaling.DeviceID) (signaling.CallID, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	return c.calls.StartOutgoingCall(remote, mediaType, localDeviceID)
}

// Proceed lets the call allocate media with the given ICE configuration.
func (c *Coordinator) Proceed(callID signaling.CallID, media call.MediaContext, bandwidth signaling.BandwidthMode, enableCamera bool) error {
	return c.calls.Proceed(callID, media, bandwidth, enableCamera)
}

// Drop abandons a call the host will not proceed with.
func (c *Coordinator) Drop(callID signaling.CallID) {
	c.calls.Drop(callID)
}

// Reset abandons any call silently.
func (c *Coordinator) Reset() {
	c.calls.Reset()
}

// Hangup ends the active call locally.
func (c *Coordinator) Hangup() {
	c.calls.Hangup()
}

// AcceptCall accepts the ringing incoming call.
func (c *Coordinator) AcceptCall(callID signaling.CallID) error {
	return c.calls.AcceptCall(callID)
}

// MessageSent reports that the oldest outstanding message of the call was
// delivered.
func (c *Coordinator) MessageSent(callID signaling.CallID) {
	c.calls.MessageSent(callID)
}

// MessageSendFailure reports that the oldest outstanding message of the
// call could not be delivered.
func (c *Coordinator) MessageSendFailure(callID signaling.CallID) {
	c.calls.MessageSendFailure(callID)
}

// ReceivedOffer handles an offer from a remote device.
func (c *Coordinator) ReceivedOffer(msg signaling.ReceivedOffer) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.calls.ReceivedOffer(msg)
}

// ReceivedAnswer handles an answer to the active outgoing call.
func (c *Coordinator) ReceivedAnswer(msg signaling.ReceivedAnswer) error {
	return c.calls.ReceivedAnswer(msg)
}

// ReceivedIceCandidates handles candidates for the active call.
func (c *Coordinator) ReceivedIceCandidates(msg signaling.ReceivedIce) error {
	return c.calls.ReceivedIceCandidates(msg)
}

// ReceivedHangup handles a hangup for the active call.
func (c *Coordinator) ReceivedHangup(msg signaling.ReceivedHangup) error {
	return c.calls.ReceivedHangup(msg)
}

// ReceivedBusy handles a busy reply to the active outgoing call.
func (c *Coordinator) ReceivedBusy(msg signaling.ReceivedBusy) error {
	return c.calls.ReceivedBusy(msg)
}

// SetAudioEnable toggles the local audio of the active call.
func (c *Coordinator) SetAudioEnable(enabled bool) {
	c.calls.SetAudioEnable(enabled)
}

// SetVideoEnable toggles the local video of the active call.
func (c *Coordinator) SetVideoEnable(enabled bool) {
	c.calls.SetVideoEnable(enabled)
}

// UpdateBandwidthMode applies mode to the active call.
func (c *Coordinator) UpdateBandwidthMode(mode signaling.BandwidthMode) {
	c.calls.UpdateBandwidthMode(mode)
}

// Describe summarizes the coordinator state for logs.
func (c *Coordinator) Describe() string {
	return fmt.Sprintf("call=[%s] groups=%d", c.calls.Describe(), c.groups.Len())
}
