package transport

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"net"
)

var Logger = logger.GetLogger("transport")

// ErrBindingConflict is returned when another live process already listens on the address
var ErrBindingConflict = errors.New("address is owned by another listener")

// --------------------------------------------------------------------------
// Connector
// --------------------------------------------------------------------------

// IConnector is the interface for transport-specific connection operations.
// Sockets are transport agnostic and delegate dialing and listening to a connector.
type IConnector interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// Dial establishes a single connection to the address
	Dial(ctx context.Context, addr Address) (net.Conn, error)

	// Listen creates a listener bound to the address
	Listen(addr Address) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}
