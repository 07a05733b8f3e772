// Package tsinject is the transport stream multiplexer splicer writes to. It
// packetises splice_info_sections into 188-byte TS packets on the signaling
// PID and writes them to stdout, a file, or a UDP destination.
package tsinject
