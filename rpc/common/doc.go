// Package common provides the configuration and logging utilities shared by
// all dMQ packages.
//
// Key Components:
//
//   - SocketConfig: Per-socket settings. Covers the outbound high-water-mark,
//     the descriptive identity, the reconnection backoff bounds and the
//     connection tuning options (send buffer, chunk size, TCP options).
//     DefaultSocketConfig returns the documented defaults (unbounded queue,
//     process id as identity, 100ms base and 5s max retry delay).
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger factory. Every dMQ package obtains its logger with
//     logger.GetLogger(name); InitLoggers installs the formatter and sets the
//     level for all of them.
package common
