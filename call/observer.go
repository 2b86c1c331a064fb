package call

import (
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/signaling"
)

// Observer is the host-facing surface of one-to-one calls. The host sends
// every outbound message over its own transport and reports the result with
// Manager.MessageSent or Manager.MessageSendFailure.
type Observer interface {
	OnStartCall(remote signaling.Remote, callID signaling.CallID, outgoing bool, mediaType signaling.CallMediaType)
	OnCallEvent(remote signaling.Remote, event signaling.CallEvent)
	OnCallConcluded(remote signaling.Remote)

	OnSendOffer(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, offer signaling.Offer)
	OnSendAnswer(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, answer signaling.Answer)
	OnSendIceCandidates(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, candidates []signaling.IceCandidate)
	OnSendHangup(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination, hangup signaling.Hangup)
	OnSendBusy(callID signaling.CallID, remote signaling.Remote, dest signaling.Destination)

	OnIncomingMedia(remote signaling.Remote, stream engine.MediaStream)

	// CompareRemotes reports whether two remotes are the same counterparty.
	CompareRemotes(a, b signaling.Remote) bool
}
