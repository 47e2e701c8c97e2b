package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := map[string]Address{
		"tcp://127.0.0.1:4000":   {Scheme: SchemeTCP, Host: "127.0.0.1", Port: 4000},
		"localhost:4000":         {Scheme: SchemeTCP, Host: "localhost", Port: 4000},
		":4000":                  {Scheme: SchemeTCP, Host: DefaultHost, Port: 4000},
		"tcp://:4000":            {Scheme: SchemeTCP, Host: DefaultHost, Port: 4000},
		"tcp://[::1]:4000":       {Scheme: SchemeTCP, Host: "::1", Port: 4000},
		"unix:///tmp/dmq.sock":   {Scheme: SchemeUnix, Path: "/tmp/dmq.sock"},
		"unix://relative/x.sock": {Scheme: SchemeUnix, Path: "relative/x.sock"},
	}

	for in, want := range tests {
		got, err := ParseAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, in := range []string{"", "unix://", "http://localhost:80", "localhost", "tcp://host:port", "host:70000"} {
		_, err := ParseAddress(in)
		assert.Error(t, err, in)
	}
}

func TestAddressFormatting(t *testing.T) {
	addr, err := ParseAddress(":4000")
	require.NoError(t, err)
	assert.Equal(t, "tcp", addr.Network())
	assert.Equal(t, "0.0.0.0:4000", addr.Endpoint())
	assert.Equal(t, "tcp://0.0.0.0:4000", addr.String())

	addr, err = ParseAddress("unix:///tmp/a.sock")
	require.NoError(t, err)
	assert.Equal(t, "unix", addr.Network())
	assert.Equal(t, "/tmp/a.sock", addr.Endpoint())
	assert.Equal(t, "unix:///tmp/a.sock", addr.String())
}

func TestFormatNetAddr(t *testing.T) {
	assert.Equal(t, "", FormatNetAddr(nil))
	assert.Equal(t, "tcp://127.0.0.1:80", FormatNetAddr(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80}))
	assert.Equal(t, "unix:///tmp/a.sock", FormatNetAddr(&net.UnixAddr{Name: "/tmp/a.sock", Net: "unix"}))
}
