// Package common contains the data structures shared across the rpc
// layer: the wire Message protocol, the client configuration, and the
// logging setup.
package common
