// Package unix implements the Unix domain socket connector for dMQ sockets.
// It provides optimized communication for processes running on the same
// machine.
//
// Stale socket recovery:
//
// A socket file outlives the process that created it if that process did not
// shut down cleanly. Binding to such a path fails with EADDRINUSE. The
// connector then dials the path: a refused connection means nobody listens
// anymore, so the file is removed and the listen is retried once. If the dial
// succeeds another process owns the address and Listen returns
// transport.ErrBindingConflict. Paths that exist but are not sockets are never
// removed.
package unix
