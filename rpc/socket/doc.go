// Package socket implements the transport-agnostic core of dMQ sockets: the
// role state machine, the connection arena, reconnection and the event stream.
//
// A Socket starts unbound and takes exactly one role. Bind makes it a server
// that accepts peers, Connect makes it a client that keeps dialing its targets.
// Calling the operation of the other role afterwards returns ErrIllegalRole.
//
// Key Components:
//
//   - Socket: Owns the listener or the dial targets, the connections (an
//     xsync.MapOf arena indexed by a never reused handle) and the dispatcher.
//
//   - Connection: One established stream with its own framing.Decoder, a reader
//     and a writer goroutine and a bounded send buffer. A connection whose send
//     buffer is full is not writable and is skipped by Broadcast.
//
//   - Event / On / Off: Lifecycle signals ("bind", "connect", "disconnect",
//     "message", "close", "socket close", "reconnect attempt", "error",
//     "socket error", "ignored error", "drop", "flush"). Events are delivered
//     in emission order by one goroutine per socket, so handlers may call back
//     into the socket.
//
//   - IBehavior: Hooks used by specialized sockets (see package pubsub) to react
//     to readiness and new connections and to filter inbound messages.
//
//   - IsIgnorable: Classifies transport errors. Every error is reported as
//     "socket error", then as "ignored error" (connection refused or reset,
//     timeouts, unreachable networks, broken pipes, missing unix paths) or "error".
//
// Reconnection:
//
// When a client connection closes or a dial fails, the socket waits and dials
// again. The delay starts at RetryBaseDelay, grows by a factor of 1.5 with every
// failed attempt and is capped at RetryMaxDelay (100ms, 150ms, 225ms, 338ms, ...
// with the defaults). A successful connection resets the delay. A RetryBaseDelay
// of zero disables reconnection.
//
// Usage Example:
//
//	s := socket.New(common.DefaultSocketConfig())
//	s.On(socket.EventMessage, func(ev socket.Event) {
//	  fmt.Println(ev.Message.Strings())
//	})
//	if err := s.Bind("tcp://127.0.0.1:3000"); err != nil {
//	  // handle error
//	}
//	defer s.Close()
package socket
