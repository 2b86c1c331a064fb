// Package pion implements engine.Engine on top of pion/webrtc.
//
// Each one-to-one connection is a webrtc.PeerConnection built from the
// call's ICE servers and DTLS certificate. Opaque offers and answers are
// SDP, opaque ICE candidates are JSON encoded webrtc.ICECandidateInit
// values, and the accepted and video status notifications travel over a
// pre-negotiated data channel. The bandwidth mode is advertised with a b=AS
// line on every media section.
//
// Local media is a pair of sample tracks; hosts feed captured frames with
// LocalMedia.WriteAudio and LocalMedia.WriteVideo. Incoming media is
// delivered as *webrtc.TrackRemote.
//
// Forking an offer to additional answering devices and group calls are
// not supported: Fork returns ErrForkUnsupported and CreateGroupClient
// returns ErrGroupCallsUnsupported.
package pion
