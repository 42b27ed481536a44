package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/serializer"
	"github.com/sessmux/sessmux/rpc/transport"
	"github.com/sessmux/sessmux/rpc/transport/tcp"
	"github.com/sessmux/sessmux/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// Load .env files if present
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// Configure viper
	viper.SetEnvPrefix("sessmux")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupClientFlags adds common session client flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds for a single synchronous call"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("The timeout in seconds for connecting a session"))

	key = "security-policy"
	cmd.PersistentFlags().String(key, "", WrapString("The security policy sessions must use (empty for none)"))

	key = "compress"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to compress frame payloads on the wire"))

	key = "housekeeping-interval"
	cmd.PersistentFlags().Int(key, 10, WrapString("How often (in seconds) the pool reconnects degraded sessions and reclaims idle ones"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 30, WrapString("TCP keep-alive period in seconds (tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("TCP linger in seconds (tcp only)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		CallTimeoutSecond:       viper.GetInt("timeout"),
		ConnectTimeoutSecond:    viper.GetInt("connect-timeout"),
		SecurityPolicy:          viper.GetString("security-policy"),
		Compression:             viper.GetBool("compress"),
		HousekeepingIntervalSec: viper.GetInt("housekeeping-interval"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
		LogLevel: viper.GetString("log-level"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	case "cbor":
		return serializer.NewCBORSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetConnector creates a session connector based on configuration
func GetConnector() (transport.ISessionConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewConnector(), nil
	case "unix":
		return unix.NewConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
