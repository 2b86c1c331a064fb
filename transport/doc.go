// Package transport carries call signaling between hosts over a websocket
// relay.
//
// A Hub accepts websocket connections from named peers, one connection per
// peer device, and forwards each JSON envelope to the devices it is
// addressed to. A Client dials the hub, sends the messages a Coordinator
// asks for and posts every inbound message back to the coordinator's
// serial execution context:
//
//	hub := transport.NewHub()
//	go http.ListenAndServe(":8765", hub)
//
//	client, err := transport.Dial(ctx, "ws://localhost:8765/", transport.ClientOptions{
//		Peer:   "alice",
//		Device: 1,
//	}, coordinator)
//
// Client implements the outbound half of callcore.Observer; hosts embed it
// in their observer. Enum fields travel as their integer tags and unknown
// tags are dropped on receipt. HTTPExecutor performs the coordinator's
// HTTP requests with net/http.
//
// Group call messages are addressed by user id, so peers taking part in
// group calls must use the string form of their UUID as peer name.
package transport
