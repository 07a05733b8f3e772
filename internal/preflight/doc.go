// Package preflight provides readiness checks for the paths, output target
// and services splicer depends on.
//
// The runtime runs RunAll before starting the daemon and logs every failed
// check; `splicer status` renders the same results when the daemon is down.
// ProbeDaemon inspects the pid file so the CLI can tell a stopped daemon from
// a crashed one.
package preflight
