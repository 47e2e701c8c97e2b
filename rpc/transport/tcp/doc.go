// Package tcp implements the TCP connector for dMQ sockets. It provides a
// concrete implementation of transport.IConnector for tcp:// and host:port
// addresses.
//
// Connections are tuned after they are established (accepted or dialed)
// using the TCPConf and SocketConf sections of the socket configuration:
// TCP_NODELAY (enabled by default, messages are small and latency matters more
// than throughput), keep-alive period, linger time and OS buffer sizes.
package tcp
