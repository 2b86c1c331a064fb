package call

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/engine/enginetest"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

type startRecord struct {
	remote    signaling.Remote
	callID    signaling.CallID
	outgoing  bool
	mediaType signaling.CallMediaType
}

type sentMessage struct {
	kind       string
	callID     signaling.CallID
	dest       signaling.Destination
	offer      signaling.Offer
	answer     signaling.Answer
	candidates []signaling.IceCandidate
	hangup     signaling.Hangup
}

type recordingObserver struct {
	started   []startRecord
	events    []signaling.CallEvent
	concluded int
	sent      []sentMessage
	media     []engine.MediaStream
}

func (o *recordingObserver) OnStartCall(remote signaling.Remote, callID signaling.CallID, outgoing bool, mediaType signaling.CallMediaType) {
	o.started = append(o.started, startRecord{remote, callID, outgoing, mediaType})
}

func (o *recordingObserver) OnCallEvent(_ signaling.Remote, event signaling.CallEvent) {
	o.events = append(o.events, event)
}

func (o *recordingObserver) OnCallConcluded(signaling.Remote) {
	o.concluded++
}

func (o *recordingObserver) OnSendOffer(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, offer signaling.Offer) {
	o.sent = append(o.sent, sentMessage{kind: "offer", callID: callID, dest: dest, offer: offer})
}

func (o *recordingObserver) OnSendAnswer(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, answer signaling.Answer) {
	o.sent = append(o.sent, sentMessage{kind: "answer", callID: callID, dest: dest, answer: answer})
}

func (o *recordingObserver) OnSendIceCandidates(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, candidates []signaling.IceCandidate) {
	o.sent = append(o.sent, sentMessage{kind: "ice", callID: callID, dest: dest, candidates: candidates})
}

func (o *recordingObserver) OnSendHangup(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination, hangup signaling.Hangup) {
	o.sent = append(o.sent, sentMessage{kind: "hangup", callID: callID, dest: dest, hangup: hangup})
}

func (o *recordingObserver) OnSendBusy(callID signaling.CallID, _ signaling.Remote, dest signaling.Destination) {
	o.sent = append(o.sent, sentMessage{kind: "busy", callID: callID, dest: dest})
}

func (o *recordingObserver) OnIncomingMedia(_ signaling.Remote, stream engine.MediaStream) {
	o.media = append(o.media, stream)
}

func (o *recordingObserver) CompareRemotes(a, b signaling.Remote) bool {
	return a == b
}

func (o *recordingObserver) sentOfKind(kind string) []sentMessage {
	var out []sentMessage
	for _, m := range o.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (o *recordingObserver) last(kind string) (sentMessage, bool) {
	msgs := o.sentOfKind(kind)
	if len(msgs) == 0 {
		return sentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

func (o *recordingObserver) countEvent(event signaling.CallEvent) int {
	n := 0
	for _, e := range o.events {
		if e == event {
			n++
		}
	}
	return n
}

// managerCallbacks routes one-to-one engine callbacks to a Manager.
type managerCallbacks struct {
	mgr *Manager
}

func (c managerCallbacks) IceStateChanged(key engine.ConnectionKey, state engine.IceState) {
	c.mgr.HandleIceStateChanged(key, state)
}
func (c managerCallbacks) IceCandidatesGathered(key engine.ConnectionKey, candidates []signaling.IceCandidate) {
	c.mgr.HandleIceCandidatesGathered(key, candidates)
}
func (c managerCallbacks) RemoteAccepted(key engine.ConnectionKey) { c.mgr.HandleRemoteAccepted(key) }
func (c managerCallbacks) RemoteVideoStatus(key engine.ConnectionKey, enabled bool) {
	c.mgr.HandleRemoteVideoStatus(key, enabled)
}
func (c managerCallbacks) IncomingMedia(key engine.ConnectionKey, stream engine.MediaStream) {
	c.mgr.HandleIncomingMedia(key, stream)
}
func (managerCallbacks) RequestMembershipProof(engine.ClientID)                                {}
func (managerCallbacks) RequestGroupMembers(engine.ClientID)                                   {}
func (managerCallbacks) GroupConnectionStateChanged(engine.ClientID, engine.ConnectionState)   {}
func (managerCallbacks) JoinStateChanged(engine.ClientID, engine.JoinState)                    {}
func (managerCallbacks) RemoteDevicesChanged(engine.ClientID, []engine.RemoteDeviceUpdate)     {}
func (managerCallbacks) IncomingVideoTrack(engine.ClientID, engine.DemuxID, engine.VideoTrack) {}
func (managerCallbacks) PeekChanged(engine.ClientID, *sfu.PeekInfo)                            {}
func (managerCallbacks) Ended(engine.ClientID, engine.GroupEndReason)                          {}
func (managerCallbacks) SendCallMessage(uuid.UUID, []byte)                                     {}

type harness struct {
	t     *testing.T
	eng   *enginetest.Engine
	obs   *recordingObserver
	mgr   *Manager
	clock *clock.MockTimeProvider
	queue []func()
}

func newHarness(t *testing.T, network *enginetest.Network, name string) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		eng:   network.NewEngine(name),
		obs:   &recordingObserver{},
		clock: clock.NewMockTimeProvider(time.Unix(1_700_000_000, 0)),
	}
	h.mgr = NewManager(h.eng, h.obs, Options{TimeProvider: h.clock})
	h.eng.SetObserver(engine.Serialize(managerCallbacks{h.mgr}, func(fn func()) {
		h.queue = append(h.queue, fn)
	}))
	return h
}

// flush runs queued engine callbacks until none are left.
func (h *harness) flush() {
	for len(h.queue) > 0 {
		fn := h.queue[0]
		h.queue = h.queue[1:]
		fn()
	}
}

func incomingOffer(callID signaling.CallID, remote signaling.Remote, from, to signaling.DeviceID, offer signaling.Offer) signaling.ReceivedOffer {
	return signaling.ReceivedOffer{
		CallID:                  callID,
		Remote:                  remote,
		SenderDeviceID:          from,
		ReceiverDeviceID:        to,
		Offer:                   offer,
		ReceiverIsPrimary:       true,
		SenderSupportsMultiRing: true,
	}
}
