package group

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/engine/enginetest"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

func TestSessionStartsDisconnected(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, engine.ClientID(7), f.session.ID())
	assert.Equal(t, engine.NotConnected, f.session.ConnectionState())
	assert.Equal(t, engine.NotJoined, f.session.JoinState())
	assert.Nil(t, f.session.PeekInfo())
	assert.Empty(t, f.session.RemoteDevices())
	_, ended := f.session.Ended()
	assert.False(t, ended)
}

func TestCommandsReachClient(t *testing.T) {
	f := newFixture(t)
	members := []sfu.GroupMember{{UserID: uuid.New(), MemberID: []byte{1}}}

	require.NoError(t, f.session.Connect())
	require.NoError(t, f.session.Join())
	require.NoError(t, f.session.SetOutgoingAudioMuted(true))
	require.NoError(t, f.session.SetOutgoingVideoMuted(true))
	require.NoError(t, f.session.ResendMediaKeys())
	require.NoError(t, f.session.SetBandwidthMode(signaling.BandwidthModeLow))
	require.NoError(t, f.session.SetMembershipProof([]byte("proof")))
	require.NoError(t, f.session.SetGroupMembers(members))

	assert.True(t, f.client.Connected())
	assert.True(t, f.client.Joined())
	audio, video := f.client.Muted()
	assert.True(t, audio)
	assert.True(t, video)
	assert.True(t, f.session.OutgoingAudioMuted())
	assert.True(t, f.session.OutgoingVideoMuted())
	assert.Equal(t, 1, f.client.MediaKeyResends())
	assert.Equal(t, signaling.BandwidthModeLow, f.client.BandwidthMode())
	assert.Equal(t, signaling.BandwidthModeLow, f.session.BandwidthMode())
	assert.Equal(t, [][]byte{[]byte("proof")}, f.client.Proofs())
	assert.Equal(t, [][]sfu.GroupMember{members}, f.client.Members())

	require.NoError(t, f.session.Leave())
	assert.False(t, f.client.Joined())
	require.NoError(t, f.session.Disconnect())
	assert.False(t, f.client.Connected())
	_, ended := f.session.Ended()
	assert.False(t, ended, "disconnect waits for the engine to end the call")
}

func TestStateChangesAreIdempotent(t *testing.T) {
	f := newFixture(t)

	f.session.HandleConnectionStateChanged(engine.Connecting)
	f.session.HandleConnectionStateChanged(engine.Connecting)
	f.session.HandleConnectionStateChanged(engine.Connected)
	f.session.HandleJoinStateChanged(engine.Joining)
	f.session.HandleJoinStateChanged(engine.Joined)
	f.session.HandleJoinStateChanged(engine.Joined)

	assert.Equal(t, []engine.ConnectionState{engine.Connecting, engine.Connected}, f.obs.connectionStates)
	assert.Equal(t, []engine.JoinState{engine.Joining, engine.Joined}, f.obs.joinStates)
}

func TestConnectionAndJoinAreIndependent(t *testing.T) {
	f := newFixture(t)

	f.session.HandleJoinStateChanged(engine.Joining)
	assert.Equal(t, engine.NotConnected, f.session.ConnectionState())

	f.session.HandleConnectionStateChanged(engine.Connected)
	f.session.HandleJoinStateChanged(engine.NotJoined)
	assert.Equal(t, engine.Connected, f.session.ConnectionState())
	assert.Equal(t, engine.NotJoined, f.session.JoinState())
}

func TestEngineRequestsAreForwarded(t *testing.T) {
	f := newFixture(t)

	f.session.HandleRequestMembershipProof()
	f.session.HandleRequestGroupMembers()

	assert.Equal(t, 1, f.obs.proofRequests)
	assert.Equal(t, 1, f.obs.memberRequests)
}

func TestRemoteDevicesMergeInPlace(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, alice), device(2, bob)})
	a, ok := f.session.RemoteDevice(1)
	require.True(t, ok)

	updated := device(1, alice)
	updated.MediaKeysReceived = true
	updated.AudioMuted = boolPtr(true)
	updated.SpeakerTime = time.Date(2026, 1, 1, 11, 30, 0, 0, time.UTC)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{updated, device(3, carol)})

	devices := f.session.RemoteDevices()
	require.Len(t, devices, 2)
	assert.Equal(t, engine.DemuxID(1), devices[0].DemuxID)
	assert.Equal(t, engine.DemuxID(3), devices[1].DemuxID)
	assert.Same(t, a, devices[0], "existing device must be updated in place")
	assert.True(t, a.MediaKeysReceived)
	require.NotNil(t, a.AudioMuted)
	assert.True(t, *a.AudioMuted)
	assert.Nil(t, a.VideoMuted)
	assert.Equal(t, updated.SpeakerTime, a.SpeakerTime)
	_, ok = f.session.RemoteDevice(2)
	assert.False(t, ok)
	assert.Equal(t, 2, f.obs.deviceChanges)

	before := snapshot(f.session)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{updated, device(3, carol)})
	assert.Equal(t, before, snapshot(f.session))
	assert.Equal(t, 2, f.obs.deviceChanges, "identical list must not notify")
}

func snapshot(s *Session) []RemoteDeviceState {
	var out []RemoteDeviceState
	for _, d := range s.RemoteDevices() {
		out = append(out, *d)
	}
	return out
}

func TestRemovedDeviceReleasesTrack(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})

	track := &enginetest.VideoTrack{}
	require.True(t, f.session.HandleIncomingVideoTrack(1, track))
	d, _ := f.session.RemoteDevice(1)
	assert.Equal(t, track, d.VideoTrack())
	assert.Equal(t, []engine.DemuxID{1}, f.obs.tracks)

	f.session.HandleRemoteDevicesChanged(nil)
	assert.Equal(t, 1, track.ReleaseCount())
	assert.Empty(t, f.session.RemoteDevices())
}

func TestReplacedTrackIsReleased(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})

	first, second := &enginetest.VideoTrack{}, &enginetest.VideoTrack{}
	require.True(t, f.session.HandleIncomingVideoTrack(1, first))
	require.True(t, f.session.HandleIncomingVideoTrack(1, second))

	assert.Equal(t, 1, first.ReleaseCount())
	assert.Equal(t, 0, second.ReleaseCount())
}

func TestVideoTrackForUnknownDeviceIsRefused(t *testing.T) {
	f := newFixture(t)

	track := &enginetest.VideoTrack{}
	assert.False(t, f.session.HandleIncomingVideoTrack(9, track))
	assert.Equal(t, 0, track.ReleaseCount(), "caller owns a refused track")
	assert.Empty(t, f.obs.tracks)
}

func TestVideoRequestsAreCoalesced(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})

	for i := 1; i <= 10; i++ {
		require.NoError(t, f.session.SetVideoRenderer(1, "grid", uint16(64*i), uint16(48*i), nil))
		f.clock.Advance(10 * time.Millisecond)
		f.session.Tick()
	}
	assert.Empty(t, f.client.VideoRequests(), "nothing is sent inside the window")

	f.clock.Advance(200 * time.Millisecond)
	f.session.Tick()
	f.session.Tick()

	batches := f.client.VideoRequests()
	require.Len(t, batches, 1)
	assert.Equal(t, []engine.VideoRequest{{DemuxID: 1, Width: 640, Height: 480}}, batches[0])
}

func TestUnchangedVideoRequestsAreNotResent(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})
	require.NoError(t, f.session.SetVideoRenderer(1, "grid", 320, 240, u16(15)))
	f.clock.Advance(time.Second)
	f.session.Tick()
	require.Len(t, f.client.VideoRequests(), 1)

	require.NoError(t, f.session.SetVideoRenderer(1, "grid", 320, 240, u16(15)))
	f.clock.Advance(time.Second)
	f.session.Tick()
	assert.Len(t, f.client.VideoRequests(), 1)
}

func TestVideoRequestUnion(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{
		device(1, uuid.New()),
		device(2, uuid.New()),
		device(3, uuid.New()),
	})

	require.NoError(t, f.session.SetVideoRenderer(1, "grid", 320, 180, u16(15)))
	require.NoError(t, f.session.SetVideoRenderer(1, "pip", 160, 240, u16(30)))
	require.NoError(t, f.session.SetVideoRenderer(2, "grid", 320, 180, u16(15)))
	require.NoError(t, f.session.SetVideoRenderer(2, "speaker", 1280, 720, nil))
	f.clock.Advance(time.Second)
	f.session.Tick()

	batches := f.client.VideoRequests()
	require.Len(t, batches, 1)
	assert.Equal(t, []engine.VideoRequest{
		{DemuxID: 1, Width: 320, Height: 240, Framerate: u16(30)},
		{DemuxID: 2, Width: 1280, Height: 720},
		{DemuxID: 3},
	}, batches[0])

	require.NoError(t, f.session.RemoveVideoRenderer(2, "speaker"))
	f.clock.Advance(time.Second)
	f.session.Tick()
	batches = f.client.VideoRequests()
	require.Len(t, batches, 2)
	assert.Equal(t, engine.VideoRequest{DemuxID: 2, Width: 320, Height: 180, Framerate: u16(15)}, batches[1][1])
}

func TestSetVideoRendererValidation(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.session.SetVideoRenderer(1, "grid", 1, 1, nil), ErrUnknownDevice)

	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})
	assert.ErrorIs(t, f.session.SetVideoRenderer(1, "", 1, 1, nil), ErrInvalidRenderer)
	assert.NoError(t, f.session.RemoveVideoRenderer(1, "missing"))
}

func TestDepartedDeviceDropsRenderers(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New()), device(2, uuid.New())})
	require.NoError(t, f.session.SetVideoRenderer(1, "grid", 320, 240, nil))
	f.clock.Advance(time.Second)
	f.session.Tick()

	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(2, uuid.New())})
	f.clock.Advance(time.Second)
	f.session.Tick()

	batches := f.client.VideoRequests()
	require.Len(t, batches, 2)
	assert.Equal(t, []engine.VideoRequest{{DemuxID: 2}}, batches[1])
}

func TestRequestPeekNeedsProof(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.RequestPeek()
	assert.ErrorIs(t, err, ErrNoMembershipProof)
	assert.Empty(t, f.peeker.calls)
}

func TestPeekResponseReplacesSnapshot(t *testing.T) {
	f := newFixture(t)
	members := []sfu.GroupMember{{UserID: uuid.New(), MemberID: []byte{0xaa}}}
	require.NoError(t, f.session.SetMembershipProof([]byte("proof")))
	require.NoError(t, f.session.SetGroupMembers(members))

	id, err := f.session.RequestPeek()
	require.NoError(t, err)
	require.Len(t, f.peeker.calls, 1)
	call := f.peeker.calls[0]
	assert.Equal(t, engine.ClientID(7), call.id)
	assert.Equal(t, id, call.requestID)
	assert.Equal(t, "https://sfu.example", call.sfuURL)
	assert.Equal(t, []byte("proof"), call.proof)
	assert.Equal(t, members, call.members)

	info := sfu.NewPeekInfo([]uuid.UUID{members[0].UserID}, nil, "era", nil, 1)
	assert.True(t, f.session.HandlePeekResponse(id, info))
	assert.Same(t, info, f.session.PeekInfo())
	assert.False(t, f.session.HandlePeekResponse(id, info), "a request resolves once")
	assert.Len(t, f.obs.peeks, 1)
}

func TestFailedPeekKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SetMembershipProof([]byte("proof")))

	pushed := sfu.NewPeekInfo(nil, nil, "era", nil, 2)
	f.session.HandlePeekChanged(pushed)

	id, err := f.session.RequestPeek()
	require.NoError(t, err)
	assert.True(t, f.session.HandlePeekResponse(id, nil))
	assert.Same(t, pushed, f.session.PeekInfo())
	assert.Len(t, f.obs.peeks, 1)
}

func TestPeekChangedWithNilIsEmpty(t *testing.T) {
	f := newFixture(t)

	f.session.HandlePeekChanged(nil)
	require.NotNil(t, f.session.PeekInfo())
	assert.False(t, f.session.PeekInfo().Active())
}

func TestPeriodicPeekWhileNotConnected(t *testing.T) {
	f := newFixture(t)

	f.session.Tick()
	assert.Empty(t, f.peeker.calls, "no proof yet")

	require.NoError(t, f.session.SetMembershipProof([]byte("proof")))
	f.session.Tick()
	require.Len(t, f.peeker.calls, 1)

	f.clock.Advance(DefaultPeekInterval / 2)
	f.session.Tick()
	assert.Len(t, f.peeker.calls, 1, "one peek in flight at a time")

	assert.True(t, f.session.HandlePeekResponse(f.peeker.calls[0].requestID, sfu.EmptyPeekInfo()))
	f.session.Tick()
	assert.Len(t, f.peeker.calls, 1, "interval not elapsed")

	f.clock.Advance(DefaultPeekInterval / 2)
	f.session.Tick()
	assert.Len(t, f.peeker.calls, 2)

	f.session.HandleConnectionStateChanged(engine.Connected)
	f.session.HandlePeekResponse(f.peeker.calls[1].requestID, sfu.EmptyPeekInfo())
	f.clock.Advance(DefaultPeekInterval)
	f.session.Tick()
	assert.Len(t, f.peeker.calls, 2, "connected calls get pushed peeks")
}

func TestUnansweredPeekIsAbandoned(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SetMembershipProof([]byte("proof")))
	f.session.Tick()
	require.Len(t, f.peeker.calls, 1)

	f.clock.Advance(DefaultPeekInterval - time.Second)
	f.session.Tick()
	assert.Len(t, f.peeker.calls, 1)

	f.clock.Advance(time.Second)
	f.session.Tick()
	require.Len(t, f.peeker.calls, 2)

	lost := f.peeker.calls[0].requestID
	assert.False(t, f.session.HandlePeekResponse(lost, sfu.EmptyPeekInfo()), "late response for an abandoned peek")
	assert.True(t, f.session.HandlePeekResponse(f.peeker.calls[1].requestID, sfu.EmptyPeekInfo()))

	// Responses that never arrive do not stop the refresh.
	for i := 0; i < 360; i++ {
		f.clock.Advance(DefaultPeekInterval)
		f.session.Tick()
	}
	assert.Len(t, f.peeker.calls, 362)
}

func TestHandleEndedIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(1, uuid.New())})
	track := &enginetest.VideoTrack{}
	require.True(t, f.session.HandleIncomingVideoTrack(1, track))

	f.session.HandleEnded(engine.MembershipProofExpired)
	f.session.HandleEnded(engine.CallFailure)

	reason, ended := f.session.Ended()
	assert.True(t, ended)
	assert.Equal(t, engine.MembershipProofExpired, reason)
	assert.Equal(t, []engine.GroupEndReason{engine.MembershipProofExpired}, f.obs.ended)
	assert.True(t, f.client.Closed())
	assert.Equal(t, 1, track.ReleaseCount())
	assert.Empty(t, f.session.RemoteDevices())

	assert.ErrorIs(t, f.session.Connect(), ErrSessionEnded)
	assert.ErrorIs(t, f.session.SetVideoRenderer(1, "grid", 1, 1, nil), ErrSessionEnded)
	_, err := f.session.RequestPeek()
	assert.ErrorIs(t, err, ErrSessionEnded)

	f.session.HandleRemoteDevicesChanged([]engine.RemoteDeviceUpdate{device(2, uuid.New())})
	assert.Empty(t, f.session.RemoteDevices())
}

type failingClient struct {
	*enginetest.GroupClient
}

func (failingClient) Join() error { return errors.New("sfu unavailable") }

func TestClientErrorsAreWrapped(t *testing.T) {
	f := newFixture(t)
	s := New(8, nil, "https://sfu.example", failingClient{f.client}, f.obs, f.peeker, Options{TimeProvider: f.clock})

	err := s.Join()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Join")
	assert.NoError(t, s.Connect())
}

func TestCallMessagesReachClient(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.session.HandleCallMessage(uuid.New(), 2, []byte("keys")))
	assert.Equal(t, [][]byte{[]byte("keys")}, f.client.Messages())
}
