package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sessmux/sessmux/lib/session"
)

// --------------------------------------------------------------------------
// Client configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by all stream transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP-specific tuning options
type TCPConf struct {
	TCPKeepAliveSec int
	TCPLingerSec    int
	TCPNoDelay      bool
}

// ClientConfig holds all configuration parameters for a session client
type ClientConfig struct {
	// Session parameters
	ConnectTimeoutSecond int
	CallTimeoutSecond    int
	SecurityPolicy       string
	Compression          bool

	// HousekeepingIntervalSec is how often the pool's housekeeping pass
	// runs (reconnect degraded sessions, reclaim idle ones)
	HousekeepingIntervalSec int

	// Transport tuning
	SocketConf SocketConf
	TCPConf    TCPConf

	// Logging configuration
	LogLevel string
}

// SessionSettings derives the default session settings from the config.
// Per-request invocation builders may override them.
func (c *ClientConfig) SessionSettings() session.SessionSettings {
	return session.SessionSettings{
		ConnectTimeout: time.Duration(c.ConnectTimeoutSecond) * time.Second,
		CallTimeout:    time.Duration(c.CallTimeoutSecond) * time.Second,
		SecurityPolicy: c.SecurityPolicy,
		Compress:       c.Compression,
	}
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Session Settings")
	addField("Connect Timeout", fmt.Sprintf("%d sec", c.ConnectTimeoutSecond))
	addField("Call Timeout", fmt.Sprintf("%d sec", c.CallTimeoutSecond))
	if c.SecurityPolicy != "" {
		addField("Security Policy", c.SecurityPolicy)
	}
	addField("Compression", fmt.Sprintf("%t", c.Compression))
	addField("Housekeeping Interval", fmt.Sprintf("%d sec", c.HousekeepingIntervalSec))

	addSection("Transport")
	addField("Write Buffer", fmt.Sprintf("%d KB", c.SocketConf.WriteBufferSize/1024))
	addField("Read Buffer", fmt.Sprintf("%d KB", c.SocketConf.ReadBufferSize/1024))
	addField("TCP NoDelay", strconv.FormatBool(c.TCPConf.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCPConf.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPConf.TCPLingerSec))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
