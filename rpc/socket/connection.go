package socket

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMQ/lib/telemetry"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/ValentinKolb/dMQ/rpc/transport"
	"io"
	"net"
	"sync"
	"time"
)

// maxWriteBatch is the maximum number of queued frames written with a single call
const maxWriteBatch = 64

// Connection is a single established stream, either dialed by a client socket or
// accepted by a server socket. Every connection has its own decoder, a reader
// and a writer goroutine and a bounded channel of outbound frames.
type Connection struct {
	id     uint64
	conn   net.Conn
	remote string
	socket *Socket
	target *target // nil for accepted connections

	decoder *framing.Decoder
	out     chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(s *Socket, id uint64, conn net.Conn, t *target) *Connection {
	return &Connection{
		id:      id,
		conn:    conn,
		remote:  transport.FormatNetAddr(conn.RemoteAddr()),
		socket:  s,
		target:  t,
		decoder: framing.NewDecoder(s.config.MaxPartSize),
		out:     make(chan []byte, s.config.SendBufferSize),
		done:    make(chan struct{}),
	}
}

// ID returns the handle of the connection. Handles are never reused within a socket.
func (c *Connection) ID() uint64 {
	return c.id
}

// RemoteAddr returns the address of the peer as a URL
func (c *Connection) RemoteAddr() string {
	return c.remote
}

// Writable reports whether the connection is open and can take another frame
func (c *Connection) Writable() bool {
	select {
	case <-c.done:
		return false
	default:
		return len(c.out) < cap(c.out)
	}
}

// TrySend hands the frame to the writer without blocking. It returns false if
// the connection is closed or its send buffer is full.
func (c *Connection) TrySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

// Send hands the frame to the writer, waiting up to timeout for room in the send
// buffer. It returns false if the connection or the socket closed first or the
// wait timed out.
func (c *Connection) Send(frame []byte, timeout time.Duration) bool {
	if c.TrySend(frame) {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.out <- frame:
		return true
	case <-c.done:
		return false
	case <-c.socket.ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

// Close tears the connection down. Client sockets schedule a reconnect afterwards.
func (c *Connection) Close() {
	c.socket.removeConnection(c, nil)
}

// --------------------------------------------------------------------------
// Goroutines
// --------------------------------------------------------------------------

// readLoop reads chunks from the stream, decodes them and delivers the messages
func (c *Connection) readLoop() {
	defer c.socket.wg.Done()

	buf := c.socket.readBuffers.Get().(*[]byte)
	defer c.socket.readBuffers.Put(buf)

	for {
		n, err := c.conn.Read(*buf)
		if n > 0 {
			telemetry.CountBytes("in", n)
			c.decoder.Feed((*buf)[:n])
			for msg, decodeErr := range c.decoder.Messages() {
				if decodeErr != nil {
					c.socket.removeConnection(c, fmt.Errorf("malformed frame from %s: %w", c.remote, decodeErr))
					return
				}
				c.socket.deliver(c, msg)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			c.socket.removeConnection(c, err)
			return
		}
	}
}

// writeLoop writes queued frames, batching whatever is already queued into a single write
func (c *Connection) writeLoop() {
	defer c.socket.wg.Done()

	bufs := make(net.Buffers, 0, maxWriteBatch)
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			bufs = append(bufs[:0], frame)
		batch:
			for len(bufs) < maxWriteBatch {
				select {
				case next := <-c.out:
					bufs = append(bufs, next)
				default:
					break batch
				}
			}

			pending := bufs
			n, err := pending.WriteTo(c.conn)
			telemetry.CountBytes("out", int(n))
			if err != nil {
				c.socket.removeConnection(c, err)
				return
			}
		}
	}
}

// startWriter and startReader launch the goroutines, wg was already incremented
// by addConnection. The writer runs before the connect hooks so frames flushed
// by them drain while they are queued.
func (c *Connection) startWriter() {
	go c.writeLoop()
}

func (c *Connection) startReader() {
	go c.readLoop()
}
