// Package base implements the medium-independent part of the session
// transport: one framed stream connection per session, a write path with
// optional S2 payload compression, and a reader goroutine that routes
// response frames to waiting callers and completion frames to the
// connection-event sink. Medium-specific packages (tcp, unix) only
// provide the connector that dials and tunes the raw connection.
package base
