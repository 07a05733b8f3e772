// Package main hosts the splicer CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: lifecycle control, manual splice triggers, detector
// match reports, pipeline play state, event log inspection and log tailing.
// A few commands work without a daemon: `config` scaffolds and validates the
// configuration file and `inspect` decodes a captured splice_info_section.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
