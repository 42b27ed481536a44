// Package client is the outward face of the session engine. It wires
// the pool, dispatcher, transaction registry and event sink together and
// exposes the typed request families (read, write, method call - each in
// a synchronous and an asynchronous variant) against a set of servers.
//
// Requests may target many servers at once; the dispatcher splits them
// per server and merges the outcomes back into one result. Asynchronous
// requests are restricted to a single server, return a request handle,
// and deliver their outcome later through the completion handler passed
// to NewClient.
package client
