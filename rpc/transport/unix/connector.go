package unix

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/transport"
	xunix "golang.org/x/sys/unix"
	"io/fs"
	"net"
	"os"
	"time"
)

const (
	// staleCheckTimeout bounds the test connection used to detect stale socket files
	staleCheckTimeout = time.Second
)

// connector implements the IConnector interface for Unix sockets
type connector struct {
	dialer net.Dialer
}

// NewConnector creates a new Unix connector
func NewConnector() transport.IConnector {
	return &connector{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "unix"
}

func (c *connector) Dial(ctx context.Context, addr transport.Address) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "unix", addr.Path)
}

// Listen creates a Unix socket listener. If the socket file already exists a test
// connection decides whether it is a leftover of a dead process (removed, listen
// again) or owned by a live listener (transport.ErrBindingConflict).
func (c *connector) Listen(addr transport.Address) (net.Listener, error) {
	socketPath := addr.Path

	listener, err := net.Listen("unix", socketPath)
	if err == nil {
		return listener, nil
	}
	if !errors.Is(err, xunix.EADDRINUSE) {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}

	stale, checkErr := isStale(socketPath)
	if checkErr != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", errors.Join(err, checkErr))
	}
	if !stale {
		return nil, fmt.Errorf("%w: %s: %w", transport.ErrBindingConflict, socketPath, err)
	}

	transport.Logger.Warningf("Removing stale socket file %s", socketPath)
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err = net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}
	return listener, nil
}

func (c *connector) UpgradeConnection(conn net.Conn, config common.SocketConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}

	if config.SocketConf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.SocketConf.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.SocketConf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.SocketConf.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// isStale dials the socket file at path. It returns true if nobody accepts
// connections on it, false if a live listener answered. Files that are not
// sockets are never reported as stale.
func isStale(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// removed in the meantime, retrying the listen is safe
			return true, nil
		}
		return false, err
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return false, fmt.Errorf("%s exists and is not a socket", path)
	}

	peer, err := net.DialTimeout("unix", path, staleCheckTimeout)
	if err == nil {
		_ = peer.Close()
		return false, nil
	}
	if errors.Is(err, xunix.ECONNREFUSED) {
		return true, nil
	}
	return false, err
}
