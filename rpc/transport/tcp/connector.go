package tcp

import (
	"net"
	"time"

	"github.com/sessmux/sessmux/lib/events"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/transport"
	"github.com/sessmux/sessmux/rpc/transport/base"
)

// sessionConnector implements the ISessionConnector interface for TCP sockets
type sessionConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ISessionConnector)
// --------------------------------------------------------------------------

func (c *sessionConnector) GetName() string {
	return "tcp"
}

func (c *sessionConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		return net.DialTimeout("tcp", endpoint, timeout)
	}
	return net.Dial("tcp", endpoint)
}

// UpgradeConnection applies performance optimizations to a TCP connection
// using configuration values from TCPConf and SocketConf
func (c *sessionConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(config.TCPConf.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if config.SocketConf.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.SocketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if config.SocketConf.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.SocketConf.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if config.TCPConf.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		keepAlivePeriod := time.Duration(config.TCPConf.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			return err
		}
	}

	// Set TCP linger option if configured
	if config.TCPConf.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(config.TCPConf.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Session Factory Method
// --------------------------------------------------------------------------

// NewConnector creates a TCP session connector
func NewConnector() transport.ISessionConnector {
	return &sessionConnector{}
}

// NewTCPSessionFactory creates a session factory dialing servers over TCP
func NewTCPSessionFactory(config common.ClientConfig, sink *events.Sink) session.FactoryFunc {
	return base.NewSessionFactory(&sessionConnector{}, config, sink)
}
