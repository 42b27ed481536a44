// Package dispatch implements the generic request dispatcher. A request
// carrying targets for possibly many servers is split by its service's
// invocation builder into one invocation per destination server URI,
// each invocation is executed against a session borrowed from the pool,
// and the per-target outcomes are merged back into a single aggregate
// result.
//
// The dispatcher is parameterized over the service family (request and
// result shapes, invocation builder) via Go generics; service traits
// such as "asynchronous" and "session level" are explicit fields of the
// Service descriptor, not distinct types.
package dispatch
