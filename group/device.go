package group

import (
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/callcore/engine"
)

// RemoteDeviceState is one remote participant device. The session updates
// it in place; its identity is the demux id.
type RemoteDeviceState struct {
	DemuxID           engine.DemuxID
	UserID            uuid.UUID
	MediaKeysReceived bool
	AudioMuted        *bool
	VideoMuted        *bool
	AddedTime         time.Time
	SpeakerTime       time.Time

	track engine.VideoTrack
}

// VideoTrack returns the incoming video track, or nil before one arrives.
func (d *RemoteDeviceState) VideoTrack() engine.VideoTrack {
	return d.track
}

func newRemoteDeviceState(u engine.RemoteDeviceUpdate) *RemoteDeviceState {
	d := &RemoteDeviceState{DemuxID: u.DemuxID}
	d.apply(u)
	return d
}

// apply merges u into d and reports whether anything changed.
func (d *RemoteDeviceState) apply(u engine.RemoteDeviceUpdate) bool {
	changed := d.UserID != u.UserID ||
		d.MediaKeysReceived != u.MediaKeysReceived ||
		!sameFlag(d.AudioMuted, u.AudioMuted) ||
		!sameFlag(d.VideoMuted, u.VideoMuted) ||
		!d.AddedTime.Equal(u.AddedTime) ||
		!d.SpeakerTime.Equal(u.SpeakerTime)

	d.UserID = u.UserID
	d.MediaKeysReceived = u.MediaKeysReceived
	d.AudioMuted = copyFlag(u.AudioMuted)
	d.VideoMuted = copyFlag(u.VideoMuted)
	d.AddedTime = u.AddedTime
	d.SpeakerTime = u.SpeakerTime
	return changed
}

func (d *RemoteDeviceState) releaseTrack() {
	if d.track != nil {
		d.track.Release()
		d.track = nil
	}
}

func sameFlag(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyFlag(f *bool) *bool {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
