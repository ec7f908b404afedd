package unix

import (
	"github.com/kvshard/core/rpc/common"
	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/rpc/transport/base"
	"net"
)

// clientConnector is base.IClientConnector for Unix domain sockets.
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}

// UpgradeConnection is a no-op: a Unix domain socket has no TCP-level
// options to tune.
func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new Unix client transport
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
