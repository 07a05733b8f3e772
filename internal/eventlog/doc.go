// Package eventlog persists the splice history in SQLite.
//
// Every daemon start opens a run; each dispatch attempt the scheduler reports
// is appended to splice_events under that run. The log is an audit trail and
// is never consulted to resume state: event ids restart at 1 with each run.
package eventlog
