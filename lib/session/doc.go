// Package session defines the contract between the session pool and the
// transport layer: the ISession interface (one stateful connection to one
// server), the settings that decide whether two sessions are
// interchangeable, the status enum, and the read-only information
// snapshot the pool publishes for monitoring.
//
// The package contains no implementation. Concrete sessions are built by
// the rpc/transport packages and injected into the pool via FactoryFunc,
// which keeps the pool testable with in-memory fakes.
package session
