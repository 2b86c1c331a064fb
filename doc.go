// Package callcore is the call-signaling core of a voice and video calling
// client. It manages one-to-one calls and group calls between a host
// application, which owns the network transport and the user interface,
// and a media engine, which owns peer connections and codecs.
//
// The Coordinator is the single entry point. It holds at most one active
// one-to-one call and any number of group calls keyed by client id, routes
// engine callbacks to them and reports every outbound side effect through
// the host's Observer. The core never performs network I/O itself.
//
// # Execution model
//
// A Coordinator is not safe for concurrent use. Every method except Post
// must be called from its serial execution context: either inside a
// closure handed to Post, or from the goroutine that calls Iterate. Engine
// callbacks are marshaled onto that context automatically.
//
//	coord := callcore.NewCoordinator(eng, host, callcore.Options{})
//	go coord.Run(ctx)
//
//	coord.Post(func() {
//	    callID, err := coord.StartCall(remote, signaling.CallMediaTypeVideo, localDevice)
//	    ...
//	})
//
// Run calls Iterate every IterationInterval and whenever a closure is
// posted. Iterate runs posted closures, then enforces the call setup
// timeout, flushes coalesced video requests and starts periodic peeks.
// Tests drive Iterate directly with a clock.MockTimeProvider.
package callcore
