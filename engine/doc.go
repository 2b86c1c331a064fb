// Package engine defines the narrow capability surface the call core uses
// to drive a media engine it does not own, and the callbacks the engine
// delivers back.
//
// An Engine creates local media, peer connections for one-to-one calls and
// group-call clients. Each created object is a typed handle owned by exactly
// one session; sessions keep their handles in an Arena so that a destroyed
// handle becomes a lookup miss instead of a dangling reference.
//
// Engines invoke Observer methods from their own goroutines. The coordinator
// wraps its observer with Serialize so every callback runs on the
// coordinator's serial execution context.
package engine
