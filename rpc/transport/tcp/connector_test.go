package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenDialUpgrade(t *testing.T) {
	c := NewConnector()
	assert.Equal(t, "tcp", c.GetName())

	l, err := c.Listen(transport.Address{Scheme: transport.SchemeTCP, Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	defer l.Close()

	addr, err := transport.ParseAddress(l.Addr().String())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := c.Dial(ctx, addr)
	require.NoError(t, err)
	defer conn.Close()

	config := common.DefaultSocketConfig()
	config.TCPConf.TCPKeepAliveSec = 10
	config.TCPConf.TCPLingerSec = 1
	config.SocketConf.WriteBufferSize = 64 * 1024
	config.SocketConf.ReadBufferSize = 64 * 1024
	assert.NoError(t, c.UpgradeConnection(conn, config))
}

func TestDefaultLingerClosesGracefully(t *testing.T) {
	c := NewConnector()
	l, err := c.Listen(transport.Address{Scheme: transport.SchemeTCP, Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	defer l.Close()

	addr, err := transport.ParseAddress(l.Addr().String())
	require.NoError(t, err)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := c.Dial(ctx, addr)
	require.NoError(t, err)

	// a zero linger must not turn Close into a reset
	require.NoError(t, c.UpgradeConnection(conn, common.SocketConfig{}))
	_, err = conn.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	var peer net.Conn
	select {
	case peer = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	defer peer.Close()

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	data, err := io.ReadAll(peer)
	assert.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}

func TestListenAddressInUse(t *testing.T) {
	c := NewConnector()
	l, err := c.Listen(transport.Address{Scheme: transport.SchemeTCP, Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	defer l.Close()

	addr, err := transport.ParseAddress(l.Addr().String())
	require.NoError(t, err)
	_, err = c.Listen(addr)
	assert.Error(t, err)
}
