package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

func TestArenaLifecycle(t *testing.T) {
	arena := NewArena[string]()
	a := arena.Insert("a")
	b := arena.Insert("b")

	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
	assert.Equal(t, 2, arena.Len())

	v, ok := arena.Get(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	removed, ok := arena.Remove(a)
	require.True(t, ok)
	assert.Equal(t, "a", removed)

	_, ok = arena.Get(a)
	assert.False(t, ok, "removed id must be a lookup miss")
	_, ok = arena.Remove(a)
	assert.False(t, ok)

	c := arena.Insert("c")
	assert.Greater(t, c, b, "ids are not reused")
	assert.Equal(t, []uint32{b, c}, arena.IDs())
}

func TestArenaEachAllowsRemoval(t *testing.T) {
	arena := NewArena[int]()
	for i := 0; i < 4; i++ {
		arena.Insert(i)
	}

	var seen []int
	arena.Each(func(id uint32, v int) {
		seen = append(seen, v)
		arena.Remove(id)
	})

	assert.Equal(t, []int{0, 1, 2, 3}, seen)
	assert.Zero(t, arena.Len())
}

func TestArenaDrain(t *testing.T) {
	arena := NewArena[string]()
	arena.Insert("x")
	arena.Insert("y")

	assert.Equal(t, []string{"x", "y"}, arena.Drain())
	assert.Zero(t, arena.Len())
}

func TestArenaInsertWith(t *testing.T) {
	arena := NewArena[string]()

	id, err := arena.InsertWith(func(id uint32) (string, error) {
		return fmt.Sprintf("client-%d", id), nil
	})
	require.NoError(t, err)
	v, _ := arena.Get(id)
	assert.Equal(t, "client-1", v)

	_, err = arena.InsertWith(func(uint32) (string, error) {
		return "", errors.New("allocation failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, arena.Len())

	next := arena.Insert("after")
	assert.Equal(t, uint32(3), next, "a failed build still consumes its id")
}

type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) IceStateChanged(ConnectionKey, IceState) {
	r.calls = append(r.calls, "ice-state")
}
func (r *recordingObserver) IceCandidatesGathered(ConnectionKey, []signaling.IceCandidate) {
	r.calls = append(r.calls, "ice-candidates")
}
func (r *recordingObserver) RemoteAccepted(ConnectionKey) { r.calls = append(r.calls, "accepted") }
func (r *recordingObserver) RemoteVideoStatus(ConnectionKey, bool) {
	r.calls = append(r.calls, "video-status")
}
func (r *recordingObserver) IncomingMedia(ConnectionKey, MediaStream) {
	r.calls = append(r.calls, "media")
}
func (r *recordingObserver) RequestMembershipProof(ClientID) { r.calls = append(r.calls, "proof") }
func (r *recordingObserver) RequestGroupMembers(ClientID)    { r.calls = append(r.calls, "members") }
func (r *recordingObserver) GroupConnectionStateChanged(ClientID, ConnectionState) {
	r.calls = append(r.calls, "connection-state")
}
func (r *recordingObserver) JoinStateChanged(ClientID, JoinState) {
	r.calls = append(r.calls, "join-state")
}
func (r *recordingObserver) RemoteDevicesChanged(ClientID, []RemoteDeviceUpdate) {
	r.calls = append(r.calls, "devices")
}
func (r *recordingObserver) IncomingVideoTrack(ClientID, DemuxID, VideoTrack) {
	r.calls = append(r.calls, "track")
}
func (r *recordingObserver) PeekChanged(ClientID, *sfu.PeekInfo) { r.calls = append(r.calls, "peek") }
func (r *recordingObserver) Ended(ClientID, GroupEndReason)      { r.calls = append(r.calls, "ended") }
func (r *recordingObserver) SendCallMessage(uuid.UUID, []byte) {
	r.calls = append(r.calls, "call-message")
}

func TestSerializeDefersCallbacks(t *testing.T) {
	inner := &recordingObserver{}
	var queue []func()
	obs := Serialize(inner, func(fn func()) { queue = append(queue, fn) })

	key := ConnectionKey{CallID: 1, DeviceID: 2}
	obs.IceStateChanged(key, IceStateConnected)
	obs.RemoteAccepted(key)
	obs.Ended(3, CallFailure)
	assert.Empty(t, inner.calls, "callbacks run only when the executor runs them")

	for _, fn := range queue {
		fn()
	}
	assert.Equal(t, []string{"ice-state", "accepted", "ended"}, inner.calls)
}

func TestVideoRequestEqual(t *testing.T) {
	fps := uint16(30)
	other := uint16(15)
	base := VideoRequest{DemuxID: 1, Width: 640, Height: 360, Framerate: &fps}

	assert.True(t, base.Equal(base))
	assert.False(t, base.Equal(VideoRequest{DemuxID: 1, Width: 640, Height: 360}))
	assert.False(t, base.Equal(VideoRequest{DemuxID: 1, Width: 640, Height: 360, Framerate: &other}))
	assert.True(t, VideoRequest{DemuxID: 1}.Paused())
	assert.False(t, base.Paused())
}

func TestParseGroupTags(t *testing.T) {
	state, err := ParseJoinState(3)
	require.NoError(t, err)
	assert.Equal(t, Pending, state)

	_, err = ParseJoinState(4)
	assert.ErrorIs(t, err, signaling.ErrUnrecognizedTag)

	conn, err := ParseConnectionState(3)
	require.NoError(t, err)
	assert.Equal(t, Reconnecting, conn)

	_, err = ParseConnectionState(-1)
	assert.ErrorIs(t, err, signaling.ErrUnrecognizedTag)

	reason, err := ParseGroupEndReason(int32(MembershipProofExpired))
	require.NoError(t, err)
	assert.Equal(t, "MembershipProofExpired", reason.String())

	_, err = ParseGroupEndReason(100)
	assert.ErrorIs(t, err, signaling.ErrUnrecognizedTag)
}
