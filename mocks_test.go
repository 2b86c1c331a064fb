package callcore

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/engine/enginetest"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

type outbound struct {
	kind       string
	callID     signaling.CallID
	dest       signaling.Destination
	offer      signaling.Offer
	answer     signaling.Answer
	candidates []signaling.IceCandidate
	hangup     signaling.Hangup
}

type httpCall struct {
	id  request.ID
	req signaling.HTTPRequest
}

type callMessage struct {
	recipient uuid.UUID
	message   []byte
}

type groupEvent struct {
	kind  string
	id    engine.ClientID
	value any
}

// hostObserver records everything the coordinator asks the host to do.
type hostObserver struct {
	started   []signaling.CallID
	incoming  []bool
	events    []signaling.CallEvent
	concluded int
	sent      []outbound
	media     []engine.MediaStream
	http      []httpCall
	messages  []callMessage
	group     []groupEvent
}

func (o *hostObserver) OnStartCall(_ signaling.Remote, callID signaling.CallID, outgoing bool, _ signaling.CallMediaType) {
	o.started = append(o.started, callID)
	o.incoming = append(o.incoming, !outgoing)
}

func (o *hostObserver) OnCallEvent(_ signaling.Remote, event signaling.CallEvent) {
	o.events = append(o.events, event)
}

func (o *hostObserver) OnCallConcluded(signaling.Remote) { o.concluded++ }

func (o *hostObserver) OnSendOffer(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, offer signaling.Offer) {
	o.sent = append(o.sent, outbound{kind: "offer", callID: callID, dest: dest, offer: offer})
}

func (o *hostObserver) OnSendAnswer(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, answer signaling.Answer) {
	o.sent = append(o.sent, outbound{kind: "answer", callID: callID, dest: dest, answer: answer})
}

func (o *hostObserver) OnSendIceCandidates(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, candidates []signaling.IceCandidate) {
	o.sent = append(o.sent, outbound{kind: "ice", callID: callID, dest: dest, candidates: candidates})
}

func (o *hostObserver) OnSendHangup(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, hangup signaling.Hangup) {
	o.sent = append(o.sent, outbound{kind: "hangup", callID: callID, dest: dest, hangup: hangup})
}

func (o *hostObserver) OnSendBusy(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination) {
	o.sent = append(o.sent, outbound{kind: "busy", callID: callID, dest: dest})
}

func (o *hostObserver) OnIncomingMedia(_ signaling.Remote, stream engine.MediaStream) {
	o.media = append(o.media, stream)
}

func (o *hostObserver) CompareRemotes(a, b signaling.Remote) bool { return a == b }

func (o *hostObserver) OnSendCallMessage(recipient uuid.UUID, message []byte) {
	o.messages = append(o.messages, callMessage{recipient, message})
}

func (o *hostObserver) OnSendHTTPRequest(id request.ID, req signaling.HTTPRequest) {
	o.http = append(o.http, httpCall{id, req})
}

func (o *hostObserver) RequestMembershipProof(id engine.ClientID) {
	o.group = append(o.group, groupEvent{kind: "proof", id: id})
}

func (o *hostObserver) RequestGroupMembers(id engine.ClientID) {
	o.group = append(o.group, groupEvent{kind: "members", id: id})
}

func (o *hostObserver) OnGroupConnectionStateChanged(id engine.ClientID, state engine.ConnectionState) {
	o.group = append(o.group, groupEvent{kind: "connection", id: id, value: state})
}

func (o *hostObserver) OnGroupJoinStateChanged(id engine.ClientID, state engine.JoinState) {
	o.group = append(o.group, groupEvent{kind: "join", id: id, value: state})
}

func (o *hostObserver) OnRemoteDevicesChanged(id engine.ClientID, devices []*group.RemoteDeviceState) {
	o.group = append(o.group, groupEvent{kind: "devices", id: id, value: len(devices)})
}

func (o *hostObserver) OnIncomingVideoTrack(id engine.ClientID, device *group.RemoteDeviceState) {
	o.group = append(o.group, groupEvent{kind: "track", id: id, value: device.DemuxID})
}

func (o *hostObserver) OnPeekChanged(id engine.ClientID, info *sfu.PeekInfo) {
	o.group = append(o.group, groupEvent{kind: "peek", id: id, value: info})
}

func (o *hostObserver) OnGroupEnded(id engine.ClientID, reason engine.GroupEndReason) {
	o.group = append(o.group, groupEvent{kind: "ended", id: id, value: reason})
}

func (o *hostObserver) last(kind string) (outbound, bool) {
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].kind == kind {
			return o.sent[i], true
		}
	}
	return outbound{}, false
}

func (o *hostObserver) groupEvents(kind string) []groupEvent {
	var out []groupEvent
	for _, e := range o.group {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type node struct {
	eng   *enginetest.Engine
	obs   *hostObserver
	coord *Coordinator
	clock *clock.MockTimeProvider
}

func newNode(t *testing.T, network *enginetest.Network, name string) *node {
	t.Helper()

	n := &node{
		eng:   network.NewEngine(name),
		obs:   &hostObserver{},
		clock: clock.NewMockTimeProvider(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	n.coord = NewCoordinator(n.eng, n.obs, Options{TimeProvider: n.clock})
	t.Cleanup(n.coord.Close)
	return n
}
