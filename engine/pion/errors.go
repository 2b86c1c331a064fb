package pion

import "errors"

var (
	// ErrForkUnsupported is returned by Connection.Fork.
	ErrForkUnsupported = errors.New("forking a peer connection is not supported")
	// ErrGroupCallsUnsupported is returned by Engine.CreateGroupClient.
	ErrGroupCallsUnsupported = errors.New("group calls are not supported")
	// ErrConnectionClosed is returned after Close.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNoObserver is returned when a connection is created before
	// SetObserver.
	ErrNoObserver = errors.New("engine observer not set")
)
