// Package rpc provides the network-facing half of the session engine:
// the communication layer the pooled sessions run on.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures shared across the rpc system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Framed session transports with pluggable connectors
//     (TCP, Unix sockets).
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB, CBOR) for converting between Message objects
//     and byte arrays.
//
//   - client: The outward client: typed request families built on the
//     generic dispatcher, session management and completion delivery.
package rpc
