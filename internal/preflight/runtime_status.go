package preflight

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DaemonProbe reports what the pid file says about a daemon process.
type DaemonProbe struct {
	PIDFile string
	PID     int
	Alive   bool
	Stale   bool
}

// ProbeDaemon reads pidPath and checks whether the recorded process exists.
// A pid file naming a dead process is reported as stale.
func ProbeDaemon(pidPath string) DaemonProbe {
	probe := DaemonProbe{PIDFile: pidPath}
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return probe
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		probe.Stale = true
		return probe
	}
	probe.PID = pid
	err = unix.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		probe.Alive = true
	default:
		probe.Stale = true
	}
	return probe
}

// Detail renders a display-friendly summary for status output.
func (p DaemonProbe) Detail() string {
	switch {
	case p.Alive:
		return fmt.Sprintf("process %d running (control socket unreachable)", p.PID)
	case p.Stale && p.PID > 0:
		return fmt.Sprintf("stale pid file %s (process %d not running)", p.PIDFile, p.PID)
	case p.Stale:
		return fmt.Sprintf("unreadable pid file %s", p.PIDFile)
	default:
		return "not running"
	}
}
