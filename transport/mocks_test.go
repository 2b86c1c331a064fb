package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/signaling"
)

const (
	timeout = time.Second
	tick    = 10 * time.Millisecond
)

// recordingSink queues posted closures; tests run them with next.
type recordingSink struct {
	posted chan func()

	mu        sync.Mutex
	sent      []signaling.CallID
	failed    []signaling.CallID
	received  []any
	responses map[request.ID]signaling.HTTPResponse
	httpFails []request.ID
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		posted:    make(chan func(), 64),
		responses: make(map[request.ID]signaling.HTTPResponse),
	}
}

func (s *recordingSink) Post(fn func()) { s.posted <- fn }

func (s *recordingSink) record(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
	return nil
}

func (s *recordingSink) MessageSent(callID signaling.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, callID)
}

func (s *recordingSink) MessageSendFailure(callID signaling.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, callID)
}

func (s *recordingSink) ReceivedOffer(msg signaling.ReceivedOffer) error   { return s.record(msg) }
func (s *recordingSink) ReceivedAnswer(msg signaling.ReceivedAnswer) error { return s.record(msg) }
func (s *recordingSink) ReceivedIceCandidates(msg signaling.ReceivedIce) error {
	return s.record(msg)
}
func (s *recordingSink) ReceivedHangup(msg signaling.ReceivedHangup) error { return s.record(msg) }
func (s *recordingSink) ReceivedBusy(msg signaling.ReceivedBusy) error     { return s.record(msg) }

func (s *recordingSink) ReceivedCallMessage(sender uuid.UUID, device signaling.DeviceID, message []byte, age time.Duration) error {
	return s.record(CallMessage{Sender: sender, SenderDevice: device, Message: message, Age: age})
}

func (s *recordingSink) ReceivedHTTPResponse(id request.ID, resp signaling.HTTPResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[id] = resp
	return true
}

func (s *recordingSink) HTTPRequestFailed(id request.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpFails = append(s.httpFails, id)
	return true
}

// next runs the next posted closure, failing after a second.
func (s *recordingSink) next(t *testing.T) {
	t.Helper()
	select {
	case fn := <-s.posted:
		fn()
	case <-time.After(timeout):
		t.Fatal("nothing posted")
	}
}

// quiet asserts nothing is posted for a short while.
func (s *recordingSink) quiet(t *testing.T) {
	t.Helper()
	select {
	case <-s.posted:
		t.Fatal("unexpected closure posted")
	case <-time.After(100 * time.Millisecond):
	}
}

func (s *recordingSink) last() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return nil
	}
	return s.received[len(s.received)-1]
}

type relay struct {
	hub    *Hub
	server *httptest.Server
	url    string
}

func newRelay(t *testing.T) *relay {
	t.Helper()

	hub := NewHub()
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &relay{hub: hub, server: server, url: "ws" + strings.TrimPrefix(server.URL, "http")}
}

// dial connects a device and waits until the hub has registered it.
func (r *relay) dial(t *testing.T, peer string, device signaling.DeviceID) (*Client, *recordingSink) {
	t.Helper()

	sink := newRecordingSink()
	client, err := Dial(context.Background(), r.url, ClientOptions{Peer: peer, Device: device}, sink)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.Eventually(t, func() bool {
		for _, id := range r.hub.Devices(peer) {
			if id == uint32(device) {
				return true
			}
		}
		return false
	}, timeout, tick)
	return client, sink
}
