package daemonctl

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"splicer/internal/config"
	"splicer/internal/ipc"
	"splicer/internal/preflight"
)

func findLine(lines []StatusLine, label string) (StatusLine, bool) {
	for _, line := range lines {
		if line.Label == label {
			return line, true
		}
	}
	return StatusLine{}, false
}

func TestBuildSystemChecksRunning(t *testing.T) {
	cfg := config.Default()
	snap := &Snapshot{
		Reachable: true,
		Status: ipc.StatusResponse{
			Running:        true,
			PID:            42,
			Target:         "udp://127.0.0.1:5000",
			Triggers:       []string{"periodic", "content"},
			ClockState:     "playing",
			ClockAvailable: true,
		},
	}
	lines := BuildSystemChecks(&cfg, snap)

	splicer, ok := findLine(lines, "Splicer")
	if !ok || splicer.Severity != "ok" || !strings.Contains(splicer.Detail, "42") {
		t.Fatalf("unexpected splicer line: %+v", splicer)
	}
	if triggers, _ := findLine(lines, "Triggers"); triggers.Detail != "periodic, content" {
		t.Fatalf("unexpected triggers line: %+v", triggers)
	}
	if output, _ := findLine(lines, "Output"); output.Detail != "udp://127.0.0.1:5000" {
		t.Fatalf("unexpected output line: %+v", output)
	}
	if pipeline, _ := findLine(lines, "Pipeline"); pipeline.Severity != "ok" {
		t.Fatalf("unexpected pipeline line: %+v", pipeline)
	}
	if _, ok := findLine(lines, "HTTP API"); ok {
		t.Fatal("HTTP API line should be omitted when bind is empty")
	}
}

func TestBuildSystemChecksOffline(t *testing.T) {
	cfg := config.Default()
	cfg.API.Bind = "127.0.0.1:8080"

	lines := BuildSystemChecks(&cfg, &Snapshot{})
	splicer, _ := findLine(lines, "Splicer")
	if splicer.Severity != "warn" || !strings.Contains(splicer.Detail, "Not running") {
		t.Fatalf("unexpected offline line: %+v", splicer)
	}
	if _, ok := findLine(lines, "Pipeline"); ok {
		t.Fatal("pipeline line requires a reachable daemon")
	}
	if api, ok := findLine(lines, "HTTP API"); !ok || api.Detail != "127.0.0.1:8080" {
		t.Fatalf("unexpected api line: %+v", api)
	}

	stale := &Snapshot{Probe: preflight.DaemonProbe{PIDFile: "/tmp/x.pid", PID: 99, Stale: true}}
	splicer, _ = findLine(BuildSystemChecks(&cfg, stale), "Splicer")
	if splicer.Severity != "error" || !strings.Contains(splicer.Detail, "stale") {
		t.Fatalf("unexpected stale line: %+v", splicer)
	}
}

func TestTerminateProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "splicer.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := TerminateProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestTerminateProcessRequiresPID(t *testing.T) {
	if _, err := TerminateProcess(filepath.Join(t.TempDir(), "absent.pid"), "", 0); err == nil {
		t.Fatal("expected error without pid")
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "absent.sock")
	if _, err := StopAndTerminate(socket, nil, 0); err != ErrDaemonNotRunning {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}
