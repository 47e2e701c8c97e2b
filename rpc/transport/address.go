package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme is the transport part of an address
type Scheme string

const (
	SchemeTCP  Scheme = "tcp"
	SchemeUnix Scheme = "unix"

	// DefaultHost is used when an address omits the host
	DefaultHost = "0.0.0.0"
)

// Address is a parsed socket address
type Address struct {
	Scheme Scheme
	Host   string // tcp only
	Port   int    // tcp only
	Path   string // unix only
}

// ParseAddress parses one of:
//
//	tcp://host:port
//	host:port
//	:port
//	unix:///path/to/socket
//
// A missing host defaults to DefaultHost.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	if rest, ok := strings.CutPrefix(s, "unix://"); ok {
		if rest == "" {
			return Address{}, fmt.Errorf("invalid unix address %q: missing path", s)
		}
		return Address{Scheme: SchemeUnix, Path: rest}, nil
	}

	hostPort := strings.TrimPrefix(s, "tcp://")
	if strings.Contains(hostPort, "://") {
		return Address{}, fmt.Errorf("invalid address %q: unsupported scheme", s)
	}
	hostPort = strings.TrimSuffix(hostPort, "/")

	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Address{}, fmt.Errorf("invalid address %q: bad port %q", s, portStr)
	}
	if host == "" {
		host = DefaultHost
	}

	return Address{Scheme: SchemeTCP, Host: host, Port: port}, nil
}

// Network returns the network name used by the net package
func (a Address) Network() string {
	return string(a.Scheme)
}

// Endpoint returns the address in the form expected by net.Dial / net.Listen
func (a Address) Endpoint() string {
	if a.Scheme == SchemeUnix {
		return a.Path
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// String returns the address as a URL
func (a Address) String() string {
	return fmt.Sprintf("%s://%s", a.Scheme, a.Endpoint())
}

// FormatNetAddr renders a listener or connection address as a URL (tcp://ip:port or unix://path)
func FormatNetAddr(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	switch addr.Network() {
	case "unix", "unixpacket":
		return "unix://" + addr.String()
	default:
		return "tcp://" + addr.String()
	}
}
