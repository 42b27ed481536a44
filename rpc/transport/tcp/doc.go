// Package tcp provides the TCP connector for the framed session
// transport.
package tcp
