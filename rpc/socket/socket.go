package socket

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/ValentinKolb/dMQ/rpc/transport"
	"github.com/ValentinKolb/dMQ/rpc/transport/tcp"
	"github.com/ValentinKolb/dMQ/rpc/transport/unix"
	"github.com/cenkalti/backoff/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("socket")

// --------------------------------------------------------------------------
// Role
// --------------------------------------------------------------------------

// Role is the side a socket takes. It is set by the first Bind or Connect and never changes.
type Role int

const (
	RoleUnbound Role = iota
	RoleClient
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unbound"
	}
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Option configures a Socket
type Option func(*Socket)

// WithBehavior installs the hooks of a specialized socket
func WithBehavior(b IBehavior) Option {
	return func(s *Socket) {
		s.behavior = b
	}
}

// WithConnector registers (or replaces) the connector used for a scheme
func WithConnector(scheme transport.Scheme, c transport.IConnector) Option {
	return func(s *Socket) {
		s.connectors[scheme] = c
	}
}

// --------------------------------------------------------------------------
// Socket
// --------------------------------------------------------------------------

// target is an address a client socket keeps connecting to
type target struct {
	addr      transport.Address
	connector transport.IConnector
	backoff   backoff.BackOff // guarded by Socket.mu
	timer     *time.Timer     // guarded by Socket.mu
}

// Socket is the transport-agnostic core shared by all socket types. It owns the
// role state machine, the connections and the event dispatcher.
type Socket struct {
	config     common.SocketConfig
	behavior   IBehavior
	connectors map[transport.Scheme]transport.IConnector

	mu       sync.Mutex
	role     Role
	ready    bool
	closing  bool
	listener net.Listener
	targets  []*target

	ctx    context.Context // canceled by Close, aborts pending dials
	cancel context.CancelFunc

	conns  *xsync.MapOf[uint64, *Connection]
	nextID atomic.Uint64
	wg     sync.WaitGroup

	readBuffers sync.Pool
	events      *dispatcher
	stats       *Stats
}

// New creates an unbound socket. Unset values in config are replaced by the
// defaults (see common.SocketConfig.WithDefaults).
func New(config common.SocketConfig, options ...Option) *Socket {
	config = config.WithDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Socket{
		config:   config,
		behavior: DefaultBehavior{},
		connectors: map[transport.Scheme]transport.IConnector{
			transport.SchemeTCP:  tcp.NewConnector(),
			transport.SchemeUnix: unix.NewConnector(),
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  xsync.NewMapOf[uint64, *Connection](),
		events: newDispatcher(),
		stats:  newStats(),
	}
	chunkSize := config.ChunkSize
	s.readBuffers.New = func() any {
		buf := make([]byte, chunkSize)
		return &buf
	}

	for _, opt := range options {
		opt(s)
	}
	return s
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Connect makes the socket a client of address. The dial happens in the
// background; success is signaled with a "connect" event and failures lead to
// reconnection attempts. Connect may be called several times to connect to
// several servers.
func (s *Socket) Connect(address string) error {
	addr, connector, err := s.resolve(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closing:
		return ErrClosed
	case s.role == RoleServer:
		return fmt.Errorf("%w: cannot connect a bound socket to %s", ErrIllegalRole, addr)
	}

	s.role = RoleClient
	t := &target{
		addr:      addr,
		connector: connector,
		backoff:   newRetryBackOff(s.config.RetryBaseDelay, s.config.RetryMaxDelay),
	}
	s.targets = append(s.targets, t)

	Logger.Infof("Socket %s connecting to %s", s.config.Identity, addr)
	s.wg.Add(1)
	go s.dial(t)
	return nil
}

// dial performs a single connection attempt, the caller must have added to wg
func (s *Socket) dial(t *target) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.DialTimeout)
	conn, err := t.connector.Dial(ctx, t.addr)
	cancel()
	if err == nil {
		if err = t.connector.UpgradeConnection(conn, s.config); err != nil {
			_ = conn.Close()
		}
	}

	if err != nil {
		if s.isClosing() {
			return
		}
		s.handleError(nil, fmt.Errorf("failed to connect to %s: %w", t.addr, err))
		s.emit(Event{Kind: EventSocketClose, Addr: t.addr.String()})
		s.scheduleRetry(t)
		return
	}

	c := s.addConnection(conn, t)
	if c == nil {
		return
	}

	s.mu.Lock()
	t.backoff.Reset()
	s.ready = true
	s.mu.Unlock()

	Logger.Infof("Socket %s connected to %s", s.config.Identity, t.addr)
	c.startWriter()
	s.behavior.HandleReady()
	s.behavior.HandleConnect(c)
	s.emit(Event{Kind: EventConnect, ConnID: c.id, Remote: c.remote, Addr: t.addr.String()})
	c.startReader()
}

// scheduleRetry arms the reconnect timer of t unless the socket is closing
func (s *Socket) scheduleRetry(t *target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return
	}
	if s.config.RetryBaseDelay <= 0 {
		Logger.Infof("Socket %s lost %s, reconnection is disabled", s.config.Identity, t.addr)
		return
	}

	delay := nextRetryDelay(t.backoff)
	Logger.Debugf("Socket %s reconnecting to %s in %v", s.config.Identity, t.addr, delay)
	t.timer = time.AfterFunc(delay, func() {
		s.retry(t, delay)
	})
}

// retry runs on the timer goroutine
func (s *Socket) retry(t *target, delay time.Duration) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	t.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()

	s.stats.Reconnects.Inc(1)
	s.emit(Event{Kind: EventReconnectAttempt, Addr: t.addr.String(), Delay: delay})
	s.dial(t)
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Bind makes the socket a server listening on address. Listen errors, including
// transport.ErrBindingConflict, are returned directly.
func (s *Socket) Bind(address string) error {
	addr, connector, err := s.resolve(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch {
	case s.closing:
		s.mu.Unlock()
		return ErrClosed
	case s.role == RoleClient:
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot bind a connected socket to %s", ErrIllegalRole, addr)
	case s.role == RoleServer:
		s.mu.Unlock()
		return ErrAlreadyBound
	}

	l, err := connector.Listen(addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.role = RoleServer
	s.listener = l
	s.ready = true
	s.wg.Add(1)
	s.mu.Unlock()

	bound := transport.FormatNetAddr(l.Addr())
	Logger.Infof("Socket %s bound to %s", s.config.Identity, bound)
	s.behavior.HandleReady()
	s.emit(Event{Kind: EventBind, Addr: bound})

	go s.acceptLoop(l, connector)
	return nil
}

// acceptLoop accepts peers until the listener is closed
func (s *Socket) acceptLoop(l net.Listener, connector transport.IConnector) {
	defer s.wg.Done()

	// temporary accept failures (e.g. EMFILE) are retried with a growing pause
	pause := backoff.NewExponentialBackOff()
	pause.InitialInterval = 5 * time.Millisecond
	pause.MaxInterval = time.Second
	pause.MaxElapsedTime = 0
	pause.Reset()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.handleError(nil, fmt.Errorf("accept failed: %w", err))
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(pause.NextBackOff()):
			}
			continue
		}
		pause.Reset()

		if err := connector.UpgradeConnection(conn, s.config); err != nil {
			s.handleError(nil, fmt.Errorf("failed to configure connection from %s: %w", conn.RemoteAddr(), err))
			_ = conn.Close()
			continue
		}

		c := s.addConnection(conn, nil)
		if c == nil {
			return
		}
		Logger.Debugf("Socket %s accepted %s", s.config.Identity, c.remote)
		c.startWriter()
		s.behavior.HandleConnect(c)
		s.emit(Event{Kind: EventConnect, ConnID: c.id, Remote: c.remote})
		c.startReader()
	}
}

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// addConnection registers conn in the arena. It returns nil (and closes conn)
// if the socket is closing. The goroutines are started by Connection.startWriter
// and Connection.startReader.
func (s *Socket) addConnection(conn net.Conn, t *target) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		_ = conn.Close()
		return nil
	}

	c := newConnection(s, s.nextID.Add(1), conn, t)
	s.conns.Store(c.id, c)
	s.wg.Add(2)
	s.stats.Connections.Update(int64(s.conns.Size()))
	return c
}

// removeConnection tears c down exactly once. A non-nil err is classified and
// reported unless it was caused by closing the socket.
func (s *Socket) removeConnection(c *Connection, err error) {
	c.closeOnce.Do(func() {
		s.conns.Delete(c.id)
		close(c.done)
		_ = c.conn.Close()
		s.stats.Connections.Update(int64(s.conns.Size()))

		if err != nil && !s.isClosing() && !errors.Is(err, net.ErrClosed) {
			s.handleError(c, err)
		}

		if c.target == nil {
			Logger.Debugf("Socket %s lost peer %s", s.config.Identity, c.remote)
			s.emit(Event{Kind: EventDisconnect, ConnID: c.id, Remote: c.remote})
			return
		}

		s.emit(Event{Kind: EventSocketClose, ConnID: c.id, Remote: c.remote, Addr: c.target.addr.String()})
		s.mu.Lock()
		s.ready = s.conns.Size() > 0
		s.mu.Unlock()
		s.scheduleRetry(c.target)
	})
}

// deliver passes a decoded message through the behavior and emits it
func (s *Socket) deliver(c *Connection, msg framing.Message) {
	s.stats.MessagesReceived.Inc(1)
	if !s.behavior.Accept(msg) {
		s.stats.MessagesFiltered.Inc(1)
		return
	}
	s.emit(Event{Kind: EventMessage, ConnID: c.id, Remote: c.remote, Message: msg})
}

// Broadcast hands an encoded frame to every writable connection and returns the
// number of connections that took it. Connections that are not writable are skipped.
func (s *Socket) Broadcast(frame []byte) int {
	sent := 0
	s.conns.Range(func(_ uint64, c *Connection) bool {
		if c.TrySend(frame) {
			sent++
		} else {
			s.stats.MessagesSkipped.Inc(1)
			Logger.Debugf("Socket %s skipped %s: not writable", s.config.Identity, c.remote)
		}
		return true
	})
	s.stats.MessagesSent.Inc(int64(sent))
	s.stats.FrameSize.Update(int64(len(frame)))
	return sent
}

// BroadcastWait is like Broadcast but waits up to SendTimeout per connection for
// room in its send buffer. It is meant for draining backlogs, where skipping a
// frame because the writer has not caught up yet would lose it.
func (s *Socket) BroadcastWait(frame []byte) int {
	sent := 0
	s.conns.Range(func(_ uint64, c *Connection) bool {
		if c.Send(frame, s.config.SendTimeout) {
			sent++
		} else {
			s.stats.MessagesSkipped.Inc(1)
			Logger.Warningf("Socket %s skipped %s: send buffer still full after %v", s.config.Identity, c.remote, s.config.SendTimeout)
		}
		return true
	})
	s.stats.MessagesSent.Inc(int64(sent))
	s.stats.FrameSize.Update(int64(len(frame)))
	return sent
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// handleError reports a transport error as "socket error" followed by either
// "ignored error" or "error"
func (s *Socket) handleError(c *Connection, err error) {
	s.stats.Errors.Inc(1)

	ev := Event{Kind: EventSocketError, Err: err}
	if c != nil {
		ev.ConnID, ev.Remote = c.id, c.remote
	}
	s.emit(ev)

	if IsIgnorable(err) {
		Logger.Debugf("Socket %s ignored error: %v", s.config.Identity, err)
		ev.Kind = EventIgnoredError
	} else {
		Logger.Errorf("Socket %s error: %v", s.config.Identity, err)
		ev.Kind = EventError
	}
	s.emit(ev)
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close stops reconnection, closes all connections and the listener and waits
// for all goroutines of the socket. The "close" event is the last event emitted.
// Close must not be called from an IBehavior hook.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.ready = false
	for _, t := range s.targets {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	l := s.listener
	s.cancel()
	s.mu.Unlock()

	var err error
	if l != nil {
		if cerr := l.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("failed to close listener: %w", cerr)
		}
	}

	s.conns.Range(func(_ uint64, c *Connection) bool {
		s.removeConnection(c, nil)
		return true
	})
	s.wg.Wait()

	Logger.Infof("Socket %s closed", s.config.Identity)
	s.emit(Event{Kind: EventClose})
	s.events.close()
	return err
}

// Done is closed after Close once every emitted event has been handled
func (s *Socket) Done() <-chan struct{} {
	return s.events.done
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// On registers a handler for the given event kind
func (s *Socket) On(kind EventKind, h Handler) {
	s.events.on(kind, h)
}

// Off removes all handlers of the given event kind
func (s *Socket) Off(kind EventKind) {
	s.events.off(kind)
}

// Emit queues an event for the handlers. Events emitted after Close are discarded.
func (s *Socket) Emit(ev Event) {
	s.emit(ev)
}

func (s *Socket) emit(ev Event) {
	ev.Identity = s.config.Identity
	s.events.emit(ev)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Address returns the address of the listener, or nil if the socket is not bound
func (s *Socket) Address() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// AddressString returns the listener address as tcp://ip:port or unix://path
func (s *Socket) AddressString() string {
	return transport.FormatNetAddr(s.Address())
}

func (s *Socket) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Ready reports whether the socket is bound or has at least one established client connection
func (s *Socket) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Connections returns the number of open connections
func (s *Socket) Connections() int {
	return s.conns.Size()
}

func (s *Socket) Config() common.SocketConfig {
	return s.config
}

func (s *Socket) Stats() *Stats {
	return s.stats
}

func (s *Socket) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// resolve parses address and picks the connector for its scheme
func (s *Socket) resolve(address string) (transport.Address, transport.IConnector, error) {
	addr, err := transport.ParseAddress(address)
	if err != nil {
		return transport.Address{}, nil, err
	}
	connector, ok := s.connectors[addr.Scheme]
	if !ok {
		return transport.Address{}, nil, fmt.Errorf("no connector for scheme %q", addr.Scheme)
	}
	return addr, connector, nil
}
