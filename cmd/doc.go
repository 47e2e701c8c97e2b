// Package cmd implements the command-line interface of dMQ. It wraps publisher
// and subscriber sockets so messages can be sent and inspected from a shell.
//
// The package is organized into several subpackages:
//
//   - pub: Publishes every line read from stdin
//   - sub: Prints every received message to stdout
//   - perf: Measures local publish/subscribe throughput
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables in the form DMQ_<flag>
// (e.g. DMQ_RETRY_MAX_MS=1000) or in a .env file. See dmq -help for a list of
// all commands.
package cmd
