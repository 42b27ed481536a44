// Package cmd implements the command-line interface for the sessmux
// session-pooling client. It provides a hierarchical command structure
// for talking to remote servers over pooled sessions.
//
// The package is organized into several subpackages:
//
//   - attr: Commands for attribute operations (read, write, call, perf)
//   - sessions: Commands for inspecting and managing sessions (ping)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See sessmux -help for a list of all commands.
package cmd
