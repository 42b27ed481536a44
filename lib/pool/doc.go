// Package pool implements the session pool: a reference-counted
// collection of long-lived sessions keyed by client connection id.
//
// Callers borrow sessions via AcquireSession and give them back via
// ReleaseSession; the per-session activity count tracks how many
// operations are in flight. A session is removed only when its activity
// count is zero, it is disconnected, and it is not pinned by a manual
// connect. Removal happens immediately on the release that makes the
// session eligible; DoHouseKeeping is the backstop that additionally
// reconnects disconnected sessions which still have pending activity or
// are pinned.
//
// A single mutex guards the session map and the activity counters. It is
// held only for the map mutations themselves - connect and invoke calls
// into the transport always run outside the lock, so a slow network call
// on one session never blocks acquire/release on another.
package pool
