// Package group implements the group-call session: the local view of one
// call hosted by a Selective Forwarding Unit.
//
// A Session tracks two independent axes, the transport ConnectionState and
// the local JoinState, plus a map of remote devices keyed by demux id. The
// map is merged in place on every RemoteDevicesChanged callback so that a
// *RemoteDeviceState held by the application keeps seeing updates.
//
// # Video requests
//
// Consumers register renderers per device with SetVideoRenderer. Changes are
// coalesced: the first change opens a window (200ms by default) and Tick
// pushes one RequestVideo batch once the window has elapsed, and only when
// the batch differs from the last one sent.
//
//	s.SetVideoRenderer(demux, "grid", 320, 240, nil)
//	s.SetVideoRenderer(demux, "grid", 640, 480, nil)
//	clock.Advance(250 * time.Millisecond)
//	s.Tick() // one RequestVideo with 640x480
//
// # Peeks
//
// RequestPeek asks the Peeker to fetch a membership snapshot from the SFU.
// Responses come back through HandlePeekResponse and replace the cached
// PeekInfo, the same way pushed HandlePeekChanged snapshots do. While the
// session is not connected to the SFU, Tick repeats the peek every
// PeekInterval.
//
// Sessions are not safe for concurrent use; the coordinator calls them from
// its serial execution context.
package group
