package pion

import (
	"fmt"
	"slices"

	"github.com/pion/sdp/v3"

	"github.com/opd-ai/callcore/signaling"
)

const bandwidthAS = "AS"

// withBandwidth rewrites desc so every audio and video section carries a
// b=AS line for mode.
func withBandwidth(desc string, mode signaling.BandwidthMode) (string, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc)); err != nil {
		return "", fmt.Errorf("parse sdp: %w", err)
	}

	kbps := uint64(mode.MaxBitrateBps() / 1000)
	for _, md := range parsed.MediaDescriptions {
		if md.MediaName.Media != "audio" && md.MediaName.Media != "video" {
			continue
		}
		md.Bandwidth = slices.DeleteFunc(md.Bandwidth, func(b sdp.Bandwidth) bool { return b.Type == bandwidthAS })
		md.Bandwidth = append(md.Bandwidth, sdp.Bandwidth{Type: bandwidthAS, Bandwidth: kbps})
	}

	out, err := parsed.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal sdp: %w", err)
	}
	return string(out), nil
}

// advertisedBandwidth returns the smallest b=AS value of desc in kbps.
func advertisedBandwidth(desc string) (uint64, bool) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc)); err != nil {
		return 0, false
	}

	var kbps uint64
	found := false
	for _, md := range parsed.MediaDescriptions {
		for _, b := range md.Bandwidth {
			if b.Type == bandwidthAS && (!found || b.Bandwidth < kbps) {
				kbps, found = b.Bandwidth, true
			}
		}
	}
	return kbps, found
}
