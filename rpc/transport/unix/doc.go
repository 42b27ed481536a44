// Package unix provides the Unix-domain-socket connector for the framed
// session transport.
package unix
