// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// The server registers a single "Splicer" service whose methods mirror the
// daemon's control surface: status, start/stop, manual triggers, detector
// matches, pipeline state, event history, log tailing and diagnostics.
// Request and response DTOs live in types.go; reuse them when adding calls so
// CLI and daemon stay wire compatible.
package ipc
