package unix

import (
	"net"
	"time"

	"github.com/sessmux/sessmux/lib/events"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/transport"
	"github.com/sessmux/sessmux/rpc/transport/base"
)

// sessionConnector implements the ISessionConnector interface for Unix sockets
type sessionConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ISessionConnector)
// --------------------------------------------------------------------------

func (c *sessionConnector) GetName() string {
	return "unix"
}

func (c *sessionConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		return net.DialTimeout("unix", endpoint, timeout)
	}
	return net.Dial("unix", endpoint)
}

func (c *sessionConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil // Not a Unix socket, nothing to upgrade
	}

	// Set socket write buffer size if configured
	if config.SocketConf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.SocketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if config.SocketConf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.SocketConf.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Session Factory Method
// --------------------------------------------------------------------------

// NewConnector creates a Unix-socket session connector
func NewConnector() transport.ISessionConnector {
	return &sessionConnector{}
}

// NewUnixSessionFactory creates a session factory dialing servers over
// Unix domain sockets
func NewUnixSessionFactory(config common.ClientConfig, sink *events.Sink) session.FactoryFunc {
	return base.NewSessionFactory(&sessionConnector{}, config, sink)
}
