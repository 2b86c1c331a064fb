package pion

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"
)

const streamID = "callcore"

// LocalMedia is the audio track and optional video track shared by the
// connections of one call. Samples written while a track is disabled are
// dropped.
type LocalMedia struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu           sync.Mutex
	audioEnabled bool
	videoEnabled bool
	disposed     bool
}

func newLocalMedia(enableCamera bool) (*LocalMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	return &LocalMedia{
		audio:        audio,
		video:        video,
		audioEnabled: true,
		videoEnabled: enableCamera,
	}, nil
}

// SetAudioEnabled implements engine.LocalMedia.
func (m *LocalMedia) SetAudioEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioEnabled = enabled
}

// SetVideoEnabled implements engine.LocalMedia.
func (m *LocalMedia) SetVideoEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoEnabled = enabled
}

// Enabled reports whether audio and video samples are currently sent.
func (m *LocalMedia) Enabled() (audio, video bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioEnabled && !m.disposed, m.videoEnabled && !m.disposed
}

// Dispose implements engine.LocalMedia.
func (m *LocalMedia) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
}

// WriteAudio sends one encoded Opus frame.
func (m *LocalMedia) WriteAudio(frame []byte, duration time.Duration) error {
	if audio, _ := m.Enabled(); !audio {
		return nil
	}
	return m.audio.WriteSample(media.Sample{Data: frame, Duration: duration})
}

// WriteVideo sends one encoded VP8 frame.
func (m *LocalMedia) WriteVideo(frame []byte, duration time.Duration) error {
	if _, video := m.Enabled(); !video {
		return nil
	}
	return m.video.WriteSample(media.Sample{Data: frame, Duration: duration})
}

// attach adds both tracks to pc and drains their RTCP.
func (m *LocalMedia) attach(pc *webrtc.PeerConnection) error {
	for _, track := range []*webrtc.TrackLocalStaticSample{m.audio, m.video} {
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		go drainRTCP(sender)
	}
	return nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "drainRTCP",
				"error":    err.Error(),
			}).Debug("RTCP reader stopped")
			return
		}
	}
}
