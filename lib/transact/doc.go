// Package transact implements the transaction registry: generation of
// unique, monotonic transaction ids and the short-lived mapping from a
// transaction id to the request handle that originated it.
//
// An entry is created when an asynchronous request is dispatched and
// consumed exactly once - either by Resolve when the matching completion
// notification arrives, or by Discard when the dispatch failed before any
// completion could have been produced. Completions for unknown ids are
// reported as stale by Resolve and dropped by the caller; this is normal
// during teardown and not an error of the registry.
package transact
