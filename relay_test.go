package callcore_test

import (
	"context"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore"
	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/engine/enginetest"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
	"github.com/opd-ai/callcore/transport"
)

// relayHost is a host whose signaling goes through a transport.Client.
type relayHost struct {
	*transport.Client

	coord  *callcore.Coordinator
	accept bool

	mu        sync.Mutex
	events    []signaling.CallEvent
	concluded int
}

func newRelayHost(t *testing.T, network *enginetest.Network, relayURL, name string, accept bool) *relayHost {
	t.Helper()

	h := &relayHost{accept: accept}
	h.coord = callcore.NewCoordinator(network.NewEngine(name), h, callcore.Options{})

	client, err := transport.Dial(context.Background(), relayURL, transport.ClientOptions{Peer: name, Device: 1, Primary: true}, h.coord)
	require.NoError(t, err)
	h.Client = client

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.coord.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		h.coord.Close()
		_ = client.Close()
	})
	return h
}

func (h *relayHost) has(event signaling.CallEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.events, event)
}

func (h *relayHost) concludedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.concluded
}

func (h *relayHost) OnStartCall(_ signaling.Remote, callID signaling.CallID, _ bool, _ signaling.CallMediaType) {
	h.coord.Post(func() {
		_ = h.coord.Proceed(callID, call.MediaContext{}, signaling.BandwidthModeNormal, false)
	})
}

func (h *relayHost) OnCallEvent(_ signaling.Remote, event signaling.CallEvent) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()

	if event == signaling.CallEventLocalRinging && h.accept {
		h.coord.Post(func() {
			if active := h.coord.ActiveCall(); active != nil {
				_ = h.coord.AcceptCall(active.CallID())
			}
		})
	}
}

func (h *relayHost) OnCallConcluded(signaling.Remote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.concluded++
}

func (h *relayHost) OnIncomingMedia(signaling.Remote, engine.MediaStream) {}
func (h *relayHost) CompareRemotes(a, b signaling.Remote) bool            { return a == b }
func (h *relayHost) OnSendHTTPRequest(request.ID, signaling.HTTPRequest)  {}

func (h *relayHost) RequestMembershipProof(engine.ClientID)                                {}
func (h *relayHost) RequestGroupMembers(engine.ClientID)                                   {}
func (h *relayHost) OnGroupConnectionStateChanged(engine.ClientID, engine.ConnectionState) {}
func (h *relayHost) OnGroupJoinStateChanged(engine.ClientID, engine.JoinState)             {}
func (h *relayHost) OnRemoteDevicesChanged(engine.ClientID, []*group.RemoteDeviceState)    {}
func (h *relayHost) OnIncomingVideoTrack(engine.ClientID, *group.RemoteDeviceState)        {}
func (h *relayHost) OnPeekChanged(engine.ClientID, *sfu.PeekInfo)                          {}
func (h *relayHost) OnGroupEnded(engine.ClientID, engine.GroupEndReason)                   {}

func TestCallOverRelay(t *testing.T) {
	hub := transport.NewHub()
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	relayURL := "ws" + strings.TrimPrefix(server.URL, "http")

	network := enginetest.NewNetwork()
	alice := newRelayHost(t, network, relayURL, "alice", false)
	bob := newRelayHost(t, network, relayURL, "bob", true)
	require.Eventually(t, func() bool {
		return len(hub.Devices("alice")) == 1 && len(hub.Devices("bob")) == 1
	}, time.Second, 10*time.Millisecond)

	alice.coord.Post(func() {
		_, err := alice.coord.StartCall("bob", signaling.CallMediaTypeAudio, 1)
		assert.NoError(t, err)
	})

	require.Eventually(t, func() bool {
		return alice.has(signaling.CallEventRemoteConnected) && bob.has(signaling.CallEventLocalConnected)
	}, 5*time.Second, 10*time.Millisecond)

	alice.coord.Post(alice.coord.Hangup)

	require.Eventually(t, func() bool {
		return bob.has(signaling.CallEventEndedRemoteHangup) && alice.concludedCount() == 1 && bob.concludedCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, alice.has(signaling.CallEventEndedLocalHangup))
}
