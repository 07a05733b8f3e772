// Package daemonctl launches, stops and inspects the splicer daemon from the
// CLI side of the control socket.
package daemonctl
