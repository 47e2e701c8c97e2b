// Package transport defines how dMQ sockets reach the network. It provides a
// common contract that all transport implementations must fulfill, so the socket
// core never deals with a specific protocol.
//
// Key Components:
//
//   - Address / ParseAddress: Parses the supported address forms
//     (tcp://host:port, host:port, :port and unix:///path) and applies the
//     default host 0.0.0.0.
//
//   - IConnector: Interface for transport-specific dialing, listening and
//     connection tuning. Implemented by the tcp and unix subpackages.
//
//   - ErrBindingConflict: Returned when a listener cannot be created because a
//     live peer already owns the address.
package transport
