package group

import (
	"slices"
	"time"

	"github.com/opd-ai/callcore/engine"
)

// renderer is one local consumer's desired size for a device's video.
type renderer struct {
	width     uint16
	height    uint16
	framerate *uint16
}

// coalescer holds at most one pending video-request recompute and the time
// it becomes due.
type coalescer struct {
	window  time.Duration
	pending bool
	wakeAt  time.Time
}

// mark opens a window at now unless one is already open.
func (c *coalescer) mark(now time.Time) {
	if c.pending {
		return
	}
	c.pending = true
	c.wakeAt = now.Add(c.window)
}

// due reports whether the pending recompute should run at now, and clears
// it when it should.
func (c *coalescer) due(now time.Time) bool {
	if !c.pending || now.Before(c.wakeAt) {
		return false
	}
	c.pending = false
	return true
}

func (c *coalescer) reset() {
	c.pending = false
	c.wakeAt = time.Time{}
}

// unionRequest merges every consumer of one device. The largest width and
// height win; any uncapped consumer leaves the framerate uncapped.
func unionRequest(demux engine.DemuxID, consumers map[string]renderer) engine.VideoRequest {
	req := engine.VideoRequest{DemuxID: demux}
	if len(consumers) == 0 {
		return req
	}

	var framerate uint16
	uncapped := false
	for _, r := range consumers {
		req.Width = max(req.Width, r.width)
		req.Height = max(req.Height, r.height)
		if r.framerate == nil {
			uncapped = true
		} else {
			framerate = max(framerate, *r.framerate)
		}
	}

	if req.Paused() {
		return engine.VideoRequest{DemuxID: demux}
	}
	if !uncapped {
		req.Framerate = &framerate
	}
	return req
}

// computeRequests returns one request per known device in demux order.
func computeRequests(devices map[engine.DemuxID]*RemoteDeviceState, renderers map[engine.DemuxID]map[string]renderer) []engine.VideoRequest {
	ids := make([]engine.DemuxID, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	requests := make([]engine.VideoRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, unionRequest(id, renderers[id]))
	}
	return requests
}

func sameRequests(a, b []engine.VideoRequest) bool {
	return slices.EqualFunc(a, b, func(x, y engine.VideoRequest) bool {
		return x.Equal(y)
	})
}
