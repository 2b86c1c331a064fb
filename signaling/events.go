package signaling

import "fmt"

// CallEvent is an outcome of a one-to-one call reported to the host
// application through Observer.OnCallEvent.
type CallEvent int32

const (
	// CallEventLocalRinging means the inbound call is ready to be accepted.
	CallEventLocalRinging CallEvent = iota
	// CallEventRemoteRinging means the outbound call is ringing at the remote.
	CallEventRemoteRinging
	// CallEventLocalConnected means the local user accepted the call.
	CallEventLocalConnected
	// CallEventRemoteConnected means the remote user accepted the call.
	CallEventRemoteConnected
	// CallEventEndedLocalHangup means the call ended by local hangup.
	CallEventEndedLocalHangup
	// CallEventEndedRemoteHangup means the remote side hung up.
	CallEventEndedRemoteHangup
	// CallEventEndedRemoteHangupNeedPermission means the remote must grant
	// permission before the call can connect.
	CallEventEndedRemoteHangupNeedPermission
	// CallEventEndedRemoteHangupAccepted means another local device accepted.
	CallEventEndedRemoteHangupAccepted
	// CallEventEndedRemoteHangupDeclined means another local device declined.
	CallEventEndedRemoteHangupDeclined
	// CallEventEndedRemoteHangupBusy means another local device was busy.
	CallEventEndedRemoteHangupBusy
	// CallEventEndedRemoteBusy means the remote side is busy.
	CallEventEndedRemoteBusy
	// CallEventEndedRemoteGlare means the call lost glare resolution.
	CallEventEndedRemoteGlare
	// CallEventEndedTimeout means the call did not connect in time.
	CallEventEndedTimeout
	// CallEventEndedInternalFailure means a local resource failed.
	CallEventEndedInternalFailure
	// CallEventEndedSignalingFailure means a critical message failed to send.
	CallEventEndedSignalingFailure
	// CallEventEndedConnectionFailure means the peer connection failed.
	CallEventEndedConnectionFailure
	// CallEventEndedAppDroppedCall means the application dropped the call.
	CallEventEndedAppDroppedCall
	// CallEventRemoteVideoEnable means the remote enabled its camera.
	CallEventRemoteVideoEnable
	// CallEventRemoteVideoDisable means the remote disabled its camera.
	CallEventRemoteVideoDisable
	// CallEventReconnecting means the connection is being re-established.
	CallEventReconnecting
	// CallEventReconnected means the connection was re-established.
	CallEventReconnected
	// CallEventReceivedOfferExpired means an offer arrived too late to ring.
	CallEventReceivedOfferExpired
	// CallEventReceivedOfferWhileActive means an offer arrived while another
	// call with a different remote was active.
	CallEventReceivedOfferWhileActive
	// CallEventReceivedOfferWithGlare means an offer from the remote of the
	// active call lost glare resolution and was ignored.
	CallEventReceivedOfferWithGlare
	// CallEventIgnoreCallsFromNonMultiringCallers means a linked device
	// ignored an offer from a caller without multi-ring support.
	CallEventIgnoreCallsFromNonMultiringCallers
)

var callEventNames = [...]string{
	"LocalRinging",
	"RemoteRinging",
	"LocalConnected",
	"RemoteConnected",
	"EndedLocalHangup",
	"EndedRemoteHangup",
	"EndedRemoteHangupNeedPermission",
	"EndedRemoteHangupAccepted",
	"EndedRemoteHangupDeclined",
	"EndedRemoteHangupBusy",
	"EndedRemoteBusy",
	"EndedRemoteGlare",
	"EndedTimeout",
	"EndedInternalFailure",
	"EndedSignalingFailure",
	"EndedConnectionFailure",
	"EndedAppDroppedCall",
	"RemoteVideoEnable",
	"RemoteVideoDisable",
	"Reconnecting",
	"Reconnected",
	"ReceivedOfferExpired",
	"ReceivedOfferWhileActive",
	"ReceivedOfferWithGlare",
	"IgnoreCallsFromNonMultiringCallers",
}

// String returns the string representation of the event.
func (e CallEvent) String() string {
	if e >= 0 && int(e) < len(callEventNames) {
		return callEventNames[e]
	}
	return fmt.Sprintf("Unknown(%d)", int32(e))
}

// ParseCallEvent decodes a raw call event tag.
func ParseCallEvent(tag int32) (CallEvent, error) {
	if tag < 0 || int(tag) >= len(callEventNames) {
		return 0, fmt.Errorf("%w: call event %d", ErrUnrecognizedTag, tag)
	}
	return CallEvent(tag), nil
}

// EndReason is the terminal reason of a one-to-one call.
type EndReason int32

const (
	EndReasonLocalHangup EndReason = iota
	EndReasonRemoteHangup
	EndReasonRemoteHangupNeedPermission
	EndReasonRemoteHangupAccepted
	EndReasonRemoteHangupDeclined
	EndReasonRemoteHangupBusy
	EndReasonRemoteBusy
	EndReasonGlare
	EndReasonTimeout
	EndReasonInternalFailure
	EndReasonSignalingFailure
	EndReasonConnectionFailure
	EndReasonAppDropped
	EndReasonOfferExpired
	EndReasonReceivedOfferWhileActive
)

var endReasonNames = [...]string{
	"LocalHangup",
	"RemoteHangup",
	"RemoteHangupNeedPermission",
	"RemoteHangupAccepted",
	"RemoteHangupDeclined",
	"RemoteHangupBusy",
	"RemoteBusy",
	"Glare",
	"Timeout",
	"InternalFailure",
	"SignalingFailure",
	"ConnectionFailure",
	"AppDropped",
	"OfferExpired",
	"ReceivedOfferWhileActive",
}

// String returns the string representation of the reason.
func (r EndReason) String() string {
	if r >= 0 && int(r) < len(endReasonNames) {
		return endReasonNames[r]
	}
	return fmt.Sprintf("Unknown(%d)", int32(r))
}

// Event maps the reason to the CallEvent reported to the host.
func (r EndReason) Event() CallEvent {
	switch r {
	case EndReasonLocalHangup:
		return CallEventEndedLocalHangup
	case EndReasonRemoteHangup:
		return CallEventEndedRemoteHangup
	case EndReasonRemoteHangupNeedPermission:
		return CallEventEndedRemoteHangupNeedPermission
	case EndReasonRemoteHangupAccepted:
		return CallEventEndedRemoteHangupAccepted
	case EndReasonRemoteHangupDeclined:
		return CallEventEndedRemoteHangupDeclined
	case EndReasonRemoteHangupBusy:
		return CallEventEndedRemoteHangupBusy
	case EndReasonRemoteBusy:
		return CallEventEndedRemoteBusy
	case EndReasonGlare:
		return CallEventEndedRemoteGlare
	case EndReasonTimeout:
		return CallEventEndedTimeout
	case EndReasonSignalingFailure:
		return CallEventEndedSignalingFailure
	case EndReasonConnectionFailure:
		return CallEventEndedConnectionFailure
	case EndReasonAppDropped:
		return CallEventEndedAppDroppedCall
	case EndReasonOfferExpired:
		return CallEventReceivedOfferExpired
	case EndReasonReceivedOfferWhileActive:
		return CallEventReceivedOfferWhileActive
	default:
		return CallEventEndedInternalFailure
	}
}

// ReasonForHangup maps a received hangup to the reason the call ends with.
func ReasonForHangup(t HangupType) EndReason {
	switch t {
	case HangupTypeAccepted:
		return EndReasonRemoteHangupAccepted
	case HangupTypeDeclined:
		return EndReasonRemoteHangupDeclined
	case HangupTypeBusy:
		return EndReasonRemoteHangupBusy
	case HangupTypeNeedPermission:
		return EndReasonRemoteHangupNeedPermission
	default:
		return EndReasonRemoteHangup
	}
}
