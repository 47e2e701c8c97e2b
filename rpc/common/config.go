package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// UnboundedHighWaterMark disables dropping in the outbound queue
	UnboundedHighWaterMark = -1

	DefaultRetryBaseDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay  = 5000 * time.Millisecond

	// DefaultSendBufferSize is the number of frames a connection can hold before it stops being writable
	DefaultSendBufferSize = 1024

	// DefaultReadBufferSize is the size of the chunk buffer used by the connection reader
	DefaultReadBufferSize = 64 * 1024

	// DefaultMaxPartSize is the largest single message part accepted by the decoder
	DefaultMaxPartSize = 64 * 1024 * 1024

	DefaultDialTimeout = 5 * time.Second

	// DefaultSendTimeout bounds how long a queued backlog waits for room in a send buffer
	DefaultSendTimeout = 5 * time.Second
)

// --------------------------------------------------------------------------
// Socket configuration struct
// --------------------------------------------------------------------------

// SocketConf holds the socket-level settings shared by all transports
type SocketConf struct {
	WriteBufferSize int // OS send buffer size in bytes (0 = system default)
	ReadBufferSize  int // OS receive buffer size in bytes (0 = system default)
}

// TCPConf holds TCP-specific settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // seconds to linger on close, zero or negative leaves the system default
}

// SocketConfig holds all configuration parameters of a single socket
type SocketConfig struct {
	// HighWaterMark is the maximum number of buffered outbound messages before new ones are dropped.
	// Zero or negative values mean unbounded.
	HighWaterMark int

	// Identity is a descriptive label for the socket, it is not used by the protocol
	Identity string

	// Reconnection backoff bounds. A RetryBaseDelay of zero disables reconnection.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Connection settings
	DialTimeout    time.Duration
	SendTimeout    time.Duration // wait for room in a send buffer when flushing a backlog
	SendBufferSize int           // frames per connection
	ChunkSize      int           // read chunk size in bytes
	MaxPartSize    uint32

	SocketConf SocketConf
	TCPConf    TCPConf
}

// DefaultSocketConfig returns the default configuration. The identity defaults to the process id.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		HighWaterMark:  UnboundedHighWaterMark,
		Identity:       strconv.Itoa(os.Getpid()),
		RetryBaseDelay: DefaultRetryBaseDelay,
		RetryMaxDelay:  DefaultRetryMaxDelay,
		DialTimeout:    DefaultDialTimeout,
		SendTimeout:    DefaultSendTimeout,
		SendBufferSize: DefaultSendBufferSize,
		ChunkSize:      DefaultReadBufferSize,
		MaxPartSize:    DefaultMaxPartSize,
		TCPConf: TCPConf{
			TCPNoDelay: true,
		},
	}
}

// WithDefaults returns a copy of the configuration in which unset values are
// replaced by the defaults. A zero high-water-mark becomes unbounded, a
// RetryBaseDelay of zero stays zero (reconnection disabled).
func (c SocketConfig) WithDefaults() SocketConfig {
	if c.HighWaterMark <= 0 {
		c.HighWaterMark = UnboundedHighWaterMark
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = DefaultSendBufferSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultReadBufferSize
	}
	if c.MaxPartSize == 0 {
		c.MaxPartSize = DefaultMaxPartSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = c.RetryBaseDelay
	}
	return c
}

// Unbounded reports whether the high-water-mark is disabled
func (c *SocketConfig) Unbounded() bool {
	return c.HighWaterMark <= 0
}

// String returns a formatted string representation of the configuration
func (c *SocketConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Socket")
	addField("Identity", c.Identity)
	if c.Unbounded() {
		addField("High Water Mark", "unbounded")
	} else {
		addField("High Water Mark", strconv.Itoa(c.HighWaterMark))
	}

	addSection("Reconnect")
	if c.RetryBaseDelay == 0 {
		addField("Retry", "disabled")
	} else {
		addField("Retry Base Delay", c.RetryBaseDelay.String())
		addField("Retry Max Delay", c.RetryMaxDelay.String())
	}

	addSection("Connection")
	addField("Dial Timeout", c.DialTimeout.String())
	addField("Send Buffer", fmt.Sprintf("%d frames", c.SendBufferSize))
	addField("Chunk Size", fmt.Sprintf("%d bytes", c.ChunkSize))
	addField("Max Part Size", fmt.Sprintf("%d bytes", c.MaxPartSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.SocketConf.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.SocketConf.ReadBufferSize))

	addSection("TCP")
	addField("No Delay", fmt.Sprintf("%t", c.TCPConf.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCPConf.TCPKeepAliveSec))
	if c.TCPConf.TCPLingerSec > 0 {
		addField("Linger", fmt.Sprintf("%d sec", c.TCPConf.TCPLingerSec))
	} else {
		addField("Linger", "system default")
	}

	return sb.String()
}
