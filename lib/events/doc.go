// Package events implements the connection-event sink. Instead of the
// transport calling back into pool or dispatcher internals on its own
// threads, it posts plain event values (status changes, asynchronous
// call completions) onto the sink's queue; a single consumer goroutine
// applies them. This keeps the transport's threading out of the engine
// and lets tests inject events without any real connection.
package events
