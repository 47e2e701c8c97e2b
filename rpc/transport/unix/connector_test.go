package unix

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketAddr(t *testing.T) transport.Address {
	t.Helper()
	return transport.Address{Scheme: transport.SchemeUnix, Path: filepath.Join(t.TempDir(), "dmq.sock")}
}

// leaveStaleSocket creates a socket file that nobody listens on anymore
func leaveStaleSocket(t *testing.T, path string) {
	t.Helper()
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	_, err = os.Lstat(path)
	require.NoError(t, err, "socket file should survive the close")
}

func TestListenAndDial(t *testing.T) {
	c := NewConnector()
	addr := socketAddr(t)

	l, err := c.Listen(addr)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := c.Dial(ctx, addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, c.UpgradeConnection(conn, common.DefaultSocketConfig()))
	assert.Equal(t, "unix", c.GetName())
}

func TestListenRemovesStaleSocket(t *testing.T) {
	c := NewConnector()
	addr := socketAddr(t)
	leaveStaleSocket(t, addr.Path)

	l, err := c.Listen(addr)
	require.NoError(t, err)
	defer l.Close()

	conn, err := net.Dial("unix", addr.Path)
	require.NoError(t, err)
	conn.Close()
}

func TestListenConflictWithLiveListener(t *testing.T) {
	c := NewConnector()
	addr := socketAddr(t)

	live, err := net.Listen("unix", addr.Path)
	require.NoError(t, err)
	defer live.Close()

	_, err = c.Listen(addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrBindingConflict)

	// the live listener is untouched
	conn, err := net.Dial("unix", addr.Path)
	require.NoError(t, err)
	conn.Close()
}

func TestListenKeepsRegularFiles(t *testing.T) {
	c := NewConnector()
	addr := socketAddr(t)
	require.NoError(t, os.WriteFile(addr.Path, []byte("data"), 0o600))

	_, err := c.Listen(addr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, transport.ErrBindingConflict)

	data, err := os.ReadFile(addr.Path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
