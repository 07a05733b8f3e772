// Package daemon runs the splicer signaling process.
//
// A Daemon wires configuration, the pipeline clock, the transport stream
// injector, the splice coordinator and the SQLite event log into a single
// lifecycle guarded by a flock so only one instance signals a stream. Every
// Start opens a fresh run: event ids restart at 1 and the event log records
// the run under a new uuid. Dispatch records are persisted and turned into
// notifications by a recorder goroutine so the scheduler never waits on disk
// or network.
//
// The daemon also serves an optional HTTP status endpoint when api.bind is
// configured; the CLI talks to it through the ipc package instead.
package daemon
