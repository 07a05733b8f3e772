// Package logs tails the daemon log file for `splicer logs` and the LogTail
// control call.
//
// A negative offset returns the last N lines; a non-negative one resumes from
// a byte offset returned by a previous call. Follow mode polls until a line
// arrives or the wait expires. An optional substring filter narrows lines to
// one event id or event type without changing offset accounting.
package logs
