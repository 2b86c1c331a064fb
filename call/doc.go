// Package call implements one-to-one calls: the per-call state machine, the
// call context that owns resources shared by every connection of a call, the
// per-device connection handles and glare resolution.
//
// A Manager holds at most one active Session. Every method of Manager and
// Session must be called from a single serial execution context; none of
// them lock.
//
// State machine:
//
//	Idle -> Proceeding -> LocalRinging | RemoteRinging -> Connected <-> Reconnecting
//	any non-terminal state -> Ended{reason}
package call
