package callcore

import (
	"github.com/google/uuid"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// Observer is implemented by the host application. It receives call
// lifecycle notifications and every message the core needs sent.
type Observer interface {
	call.Observer
	GroupObserver

	// OnSendCallMessage asks the host to deliver an opaque group call
	// message to every device of recipient.
	OnSendCallMessage(recipient uuid.UUID, message []byte)

	// OnSendHTTPRequest asks the host to perform req and report the
	// outcome with ReceivedHTTPResponse or HTTPRequestFailed.
	OnSendHTTPRequest(requestID request.ID, req signaling.HTTPRequest)
}

// GroupObserver receives group call notifications keyed by client id.
type GroupObserver interface {
	// RequestMembershipProof asks for a proof, supplied later through the
	// session's SetMembershipProof.
	RequestMembershipProof(id engine.ClientID)
	// RequestGroupMembers asks for the member list, supplied later through
	// the session's SetGroupMembers.
	RequestGroupMembers(id engine.ClientID)

	OnGroupConnectionStateChanged(id engine.ClientID, state engine.ConnectionState)
	OnGroupJoinStateChanged(id engine.ClientID, state engine.JoinState)
	OnRemoteDevicesChanged(id engine.ClientID, devices []*group.RemoteDeviceState)
	OnIncomingVideoTrack(id engine.ClientID, device *group.RemoteDeviceState)
	OnPeekChanged(id engine.ClientID, info *sfu.PeekInfo)
	OnGroupEnded(id engine.ClientID, reason engine.GroupEndReason)
}
