package transport

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore/signaling"
)

func TestOfferReachesEveryDevice(t *testing.T) {
	r := newRelay(t)
	alice, aliceSink := r.dial(t, "alice", 1)
	_, bob1 := r.dial(t, "bob", 1)
	_, bob2 := r.dial(t, "bob", 2)

	alice.OnSendOffer(42, "bob", signaling.BroadcastTo(), signaling.Offer{CallMediaType: signaling.CallMediaTypeAudio, Opaque: []byte("offer")})

	aliceSink.next(t)
	assert.Equal(t, []signaling.CallID{42}, aliceSink.sent)

	for device, sink := range map[signaling.DeviceID]*recordingSink{1: bob1, 2: bob2} {
		sink.next(t)
		offer, ok := sink.last().(signaling.ReceivedOffer)
		require.True(t, ok)
		assert.Equal(t, signaling.CallID(42), offer.CallID)
		assert.Equal(t, "alice", offer.Remote)
		assert.Equal(t, signaling.DeviceID(1), offer.SenderDeviceID)
		assert.Equal(t, device, offer.ReceiverDeviceID)
		assert.Equal(t, []byte("offer"), offer.Offer.Opaque)
		assert.True(t, offer.SenderSupportsMultiRing)
	}
	assert.Equal(t, []string{"alice", "bob"}, r.hub.Peers())
}

func TestDeviceAddressedMessageReachesOnlyThatDevice(t *testing.T) {
	r := newRelay(t)
	alice, aliceSink := r.dial(t, "alice", 1)
	_, bob1 := r.dial(t, "bob", 1)
	_, bob2 := r.dial(t, "bob", 2)

	alice.OnSendHangup(42, "bob", signaling.DeviceTo(2), signaling.Hangup{Type: signaling.HangupTypeDeclined, DeviceID: 2})
	aliceSink.next(t)

	bob2.next(t)
	hangup, ok := bob2.last().(signaling.ReceivedHangup)
	require.True(t, ok)
	assert.Equal(t, signaling.Hangup{Type: signaling.HangupTypeDeclined, DeviceID: 2}, hangup.Hangup)
	bob1.quiet(t)
}

func TestIceAndAnswerRoundTrip(t *testing.T) {
	r := newRelay(t)
	alice, aliceSink := r.dial(t, "alice", 1)
	bob, bobSink := r.dial(t, "bob", 7)

	bob.OnSendAnswer(42, "alice", signaling.DeviceTo(1), signaling.Answer{Opaque: []byte("answer")})
	bobSink.next(t)
	aliceSink.next(t)
	answer, ok := aliceSink.last().(signaling.ReceivedAnswer)
	require.True(t, ok)
	assert.Equal(t, signaling.DeviceID(7), answer.SenderDeviceID)

	alice.OnSendIceCandidates(42, "bob", signaling.DeviceTo(7), []signaling.IceCandidate{{Opaque: []byte("c1")}})
	aliceSink.next(t)
	bobSink.next(t)
	ice, ok := bobSink.last().(signaling.ReceivedIce)
	require.True(t, ok)
	assert.Equal(t, []signaling.IceCandidate{{Opaque: []byte("c1")}}, ice.Candidates)
	assert.Equal(t, []signaling.CallID{42}, aliceSink.sent)
	assert.Equal(t, []signaling.CallID{42}, bobSink.sent)
}

func TestSendToInvalidRemoteReportsFailure(t *testing.T) {
	r := newRelay(t)
	alice, sink := r.dial(t, "alice", 1)

	alice.OnSendOffer(42, 12345, signaling.BroadcastTo(), signaling.Offer{Opaque: []byte("offer")})
	sink.next(t)
	assert.Equal(t, []signaling.CallID{42}, sink.failed)
	assert.Empty(t, sink.sent)
}

func TestBusyIsNotTracked(t *testing.T) {
	r := newRelay(t)
	alice, aliceSink := r.dial(t, "alice", 1)
	_, bobSink := r.dial(t, "bob", 1)

	alice.OnSendBusy(42, "bob", signaling.DeviceTo(1))
	bobSink.next(t)
	_, ok := bobSink.last().(signaling.ReceivedBusy)
	assert.True(t, ok)
	aliceSink.quiet(t)
}

func TestCallMessageUsesUserIDs(t *testing.T) {
	r := newRelay(t)
	aliceID, bobID := uuid.New(), uuid.New()
	alice, _ := r.dial(t, aliceID.String(), 1)
	_, bobSink := r.dial(t, bobID.String(), 3)

	alice.OnSendCallMessage(bobID, []byte("ring"))
	bobSink.next(t)
	msg, ok := bobSink.last().(CallMessage)
	require.True(t, ok)
	assert.Equal(t, aliceID, msg.Sender)
	assert.Equal(t, signaling.DeviceID(1), msg.SenderDevice)
	assert.Equal(t, []byte("ring"), msg.Message)
}

func TestHubDropsForgedAndUnknownEnvelopes(t *testing.T) {
	r := newRelay(t)
	_, bobSink := r.dial(t, "bob", 1)

	conn, _, err := websocket.DefaultDialer.Dial(r.url+"?peer=mallory&device=1", nil)
	require.NoError(t, err)
	defer conn.Close()

	forged := Envelope{Kind: KindSignal, From: "alice", FromDevice: 1, To: "bob", Type: int32(signaling.MessageTypeBusy), CallID: 1}
	require.NoError(t, conn.WriteJSON(forged))

	unknown := Envelope{Kind: KindSignal, From: "mallory", FromDevice: 1, To: "bob", Type: 99, CallID: 2}
	require.NoError(t, conn.WriteJSON(unknown))

	valid := Envelope{Kind: KindSignal, From: "mallory", FromDevice: 1, To: "bob", Type: int32(signaling.MessageTypeBusy), CallID: 3}
	require.NoError(t, conn.WriteJSON(valid))

	bobSink.next(t)
	busy, ok := bobSink.last().(signaling.ReceivedBusy)
	require.True(t, ok)
	assert.Equal(t, signaling.CallID(3), busy.CallID)
	bobSink.quiet(t)
}

func TestHubRejectsAnonymousConnections(t *testing.T) {
	r := newRelay(t)

	_, resp, err := websocket.DefaultDialer.Dial(r.url+"?peer=alice", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientClose(t *testing.T) {
	r := newRelay(t)
	alice, _ := r.dial(t, "alice", 1)

	require.NoError(t, alice.Close())
	assert.NoError(t, alice.Close())
	<-alice.Done()
	assert.ErrorIs(t, alice.write(Envelope{Kind: KindSignal, To: "bob"}), ErrClosed)

	require.Eventually(t, func() bool { return len(r.hub.Devices("alice")) == 0 }, timeout, tick)
}

func TestDialValidatesIdentity(t *testing.T) {
	sink := newRecordingSink()

	_, err := Dial(context.Background(), "ws://127.0.0.1:1/", ClientOptions{Device: 1}, sink)
	assert.ErrorIs(t, err, ErrInvalidPeer)

	_, err = Dial(context.Background(), "ws://127.0.0.1:1/", ClientOptions{Peer: "alice"}, sink)
	assert.Error(t, err)

	_, err = Dial(context.Background(), "ws://127.0.0.1:1/", ClientOptions{Peer: "alice", Device: 1}, sink)
	assert.Error(t, err)
}
