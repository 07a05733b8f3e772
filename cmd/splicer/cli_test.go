package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"splicer/internal/config"
	"splicer/internal/daemon"
	"splicer/internal/daemonctl"
	"splicer/internal/eventlog"
	"splicer/internal/ipc"
	"splicer/internal/logging"
	"splicer/internal/pipeline"
	"splicer/internal/splice"
	"splicer/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	timers     *testsupport.ManualTimers
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenEventLog(t, cfg)
	timers := testsupport.NewManualTimers()
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger,
		daemon.WithTimers(timers),
		daemon.WithClock(pipeline.NewRunningClock()),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		timers:     timers,
		socketPath: cfg.Paths.SocketPath,
		configPath: configPath,
	}
}

func (e *cliTestEnv) start(t *testing.T) {
	t.Helper()
	if err := e.daemon.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	e.daemon.Clock().Play()
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitForEvents(t *testing.T, d *daemon.Daemon, want int) []eventlog.Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := d.RecentEvents(context.Background(), 10, false, false)
		if err != nil {
			t.Fatalf("RecentEvents: %v", err)
		}
		if len(entries) >= want {
			return entries
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d events, got %d", want, len(entries))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusJSONReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())
	env.start(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snap daemonctl.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !snap.Reachable || !snap.Status.Running || snap.Status.RunID == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Status.ClockState != "playing" {
		t.Fatalf("clock state = %q, want playing", snap.Status.ClockState)
	}
}

func TestStatusRendersSections(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())
	env.start(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"System Status", "Preflight", "Signaling", "Running (pid", "Ad window"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestTriggerAndEvents(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())
	env.start(t)

	out, _, err := runCLI(t, []string{"trigger", "--lead", "1s", "--duration", "5s"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !strings.Contains(out, "splice-out queued") {
		t.Fatalf("unexpected trigger output: %q", out)
	}

	waitForEvents(t, env.daemon, 1)
	deadline := time.Now().Add(2 * time.Second)
	for env.daemon.Status(context.Background()).Window.State != splice.WindowActive {
		if time.Now().After(deadline) {
			t.Fatal("ad window never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, _, err := runCLI(t, []string{"trigger"}, env.socketPath, env.configPath); err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("expected overlapping trigger to be rejected, got %v", err)
	}

	out, _, err = runCLI(t, []string{"events", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	var entries []eventlog.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode events: %v\n%s", err, out)
	}
	if len(entries) == 0 || entries[len(entries)-1].Kind != "splice_out" || entries[len(entries)-1].Source != splice.SourceManual {
		t.Fatalf("unexpected events: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "Splice Out") || !strings.Contains(out, "#1") {
		t.Fatalf("events table missing splice-out row:\n%s", out)
	}
}

func TestEventsEmpty(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())
	env.start(t)

	out, _, err := runCLI(t, []string{"events", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
	out, _, err = runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "No splice events recorded") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestTriggerRejectedWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())

	_, _, err := runCLI(t, []string{"trigger"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not running") {
		t.Fatalf("expected not running rejection, got %v", err)
	}
}

func TestMatchRequiresContentMode(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes(config.ModePeriodic))
	env.start(t)

	if _, _, err := runCLI(t, []string{"match", "slate"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected match to fail when content trigger disabled")
	}
}

func TestPipelineCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithModes())
	env.start(t)

	out, _, err := runCLI(t, []string{"pipeline", "pause"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("pipeline pause: %v", err)
	}
	if strings.TrimSpace(out) != "Pipeline paused" {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"pipeline", "rewind"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid pipeline state to fail")
	}
}

func TestCommandsFailWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"events"}, cfg.Paths.SocketPath, configPath)
	if err == nil || !strings.Contains(err.Error(), "splicer start") {
		t.Fatalf("expected dial hint, got %v", err)
	}

	out, _, err := runCLI(t, []string{"stop"}, cfg.Paths.SocketPath, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(out, "Daemon is not running") {
		t.Fatalf("unexpected stop output: %q", out)
	}

	out, _, err = runCLI(t, []string{"status"}, cfg.Paths.SocketPath, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not running") || !strings.Contains(out, "No runs recorded") {
		t.Fatalf("unexpected offline status:\n%s", out)
	}
}

func TestInspectDecodesSection(t *testing.T) {
	section, err := splice.BuildSpliceOut(7, 10*time.Second, 30*time.Second, splice.DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceOut: %v", err)
	}
	encoded := hex.EncodeToString(section.Data)

	out, _, err := runCLI(t, []string{"inspect", "--json", encoded}, "", "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var view inspectedEvent
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode inspect output: %v\n%s", err, out)
	}
	if view.Kind != "splice_out" || view.EventID != 7 || view.DurationMS != 30000 {
		t.Fatalf("unexpected inspected event: %+v", view)
	}

	out, _, err = runCLI(t, []string{"inspect", "0x" + encoded}, "", "")
	if err != nil {
		t.Fatalf("inspect table: %v", err)
	}
	if !strings.Contains(out, "Splice Out") || !strings.Contains(out, "30s") {
		t.Fatalf("unexpected inspect table:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"inspect", "not-a-section!"}, "", ""); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "splicer.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", path}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", path}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = "s3cret"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, cfg.Paths.SocketPath, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "s3cret") || !strings.Contains(out, "<redacted>") {
		t.Fatalf("token not redacted:\n%s", out)
	}
}

func TestFormatRunningTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00.000"},
		{105*time.Second + 250*time.Millisecond, "0:01:45.250"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03.000"},
		{-1500 * time.Millisecond, "-0:00:01.500"},
	}
	for _, tc := range tests {
		if got := formatRunningTime(tc.in); got != tc.want {
			t.Fatalf("formatRunningTime(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	if got := titleCase("splice_out"); got != "Splice Out" {
		t.Fatalf("titleCase = %q", got)
	}
	if got := titleCase(""); got != "-" {
		t.Fatalf("titleCase empty = %q", got)
	}
}
