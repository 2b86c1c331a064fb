package transport

import "errors"

var (
	// ErrClosed is returned by a Client that has been closed.
	ErrClosed = errors.New("transport closed")
	// ErrInvalidPeer is returned for an empty peer name or a remote that is
	// not a peer name.
	ErrInvalidPeer = errors.New("invalid peer")
	// ErrUnknownKind is returned for envelopes of an unknown kind.
	ErrUnknownKind = errors.New("unknown envelope kind")
)
