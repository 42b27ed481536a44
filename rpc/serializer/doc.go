// Package serializer converts wire Messages to and from byte arrays.
// Four interchangeable implementations are provided: JSON (debuggable),
// GOB (Go-native), CBOR (compact, cross-language) and a custom binary
// format (fastest). Client and server must agree on the format.
package serializer
