// Package rpc contains the messaging layer of dMQ: everything between a
// publisher handing over a message and a subscriber receiving it.
//
// The package is organized into several subpackages:
//
//   - common: Socket configuration and the logger setup shared by all packages.
//
//   - framing: The multipart wire format and a streaming decoder.
//
//   - transport: Address parsing and pluggable connectors (TCP, Unix sockets).
//
//   - socket: The socket core with the bind/connect state machine, connections,
//     reconnection with backoff, error classification and events.
//
//   - queue: The bounded outbound queue used before a socket is ready.
//
//   - topic: Subscription patterns with "*" wildcards.
//
//   - pubsub: Publisher and subscriber sockets built on the socket core.
package rpc
