package group

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/engine/enginetest"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
)

type recordingObserver struct {
	proofRequests    int
	memberRequests   int
	connectionStates []engine.ConnectionState
	joinStates       []engine.JoinState
	deviceChanges    int
	tracks           []engine.DemuxID
	peeks            []*sfu.PeekInfo
	ended            []engine.GroupEndReason
}

func (o *recordingObserver) RequestMembershipProof(*Session) { o.proofRequests++ }

func (o *recordingObserver) RequestGroupMembers(*Session) { o.memberRequests++ }

func (o *recordingObserver) OnConnectionStateChanged(s *Session) {
	o.connectionStates = append(o.connectionStates, s.ConnectionState())
}

func (o *recordingObserver) OnJoinStateChanged(s *Session) {
	o.joinStates = append(o.joinStates, s.JoinState())
}

func (o *recordingObserver) OnRemoteDevicesChanged(*Session) { o.deviceChanges++ }

func (o *recordingObserver) OnIncomingVideoTrack(_ *Session, d *RemoteDeviceState) {
	o.tracks = append(o.tracks, d.DemuxID)
}

func (o *recordingObserver) OnPeekChanged(s *Session) {
	o.peeks = append(o.peeks, s.PeekInfo())
}

func (o *recordingObserver) OnEnded(_ *Session, reason engine.GroupEndReason) {
	o.ended = append(o.ended, reason)
}

type peekCall struct {
	id        engine.ClientID
	requestID request.ID
	sfuURL    string
	proof     []byte
	members   []sfu.GroupMember
}

type recordingPeeker struct {
	calls []peekCall
}

func (p *recordingPeeker) RequestGroupPeek(id engine.ClientID, requestID request.ID, sfuURL string, proof []byte, members []sfu.GroupMember) {
	p.calls = append(p.calls, peekCall{id, requestID, sfuURL, proof, members})
}

type fixture struct {
	session *Session
	client  *enginetest.GroupClient
	obs     *recordingObserver
	peeker  *recordingPeeker
	clock   *clock.MockTimeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		client: &enginetest.GroupClient{ID: 7},
		obs:    &recordingObserver{},
		peeker: &recordingPeeker{},
		clock:  clock.NewMockTimeProvider(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.session = New(7, []byte("group"), "https://sfu.example", f.client, f.obs, f.peeker, Options{TimeProvider: f.clock})
	return f
}

func device(demux engine.DemuxID, user uuid.UUID) engine.RemoteDeviceUpdate {
	return engine.RemoteDeviceUpdate{
		DemuxID:   demux,
		UserID:    user,
		AddedTime: time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC),
	}
}

func boolPtr(b bool) *bool { return &b }

func u16(v uint16) *uint16 { return &v }
