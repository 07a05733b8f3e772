package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"splicer/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startPaused bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the splicer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startPaused),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startPaused, "paused", false, "Launch with the pipeline paused")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop signaling and terminate the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping signaling...")
			}
			if result.Terminated && result.PID > 0 {
				fmt.Fprintf(stdout, "Terminating daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartPaused bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the splicer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartPaused),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.Terminated && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Terminating daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartPaused, "paused", false, "Relaunch with the pipeline paused")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, signaling and readiness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range snap.System {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range snap.Preflight {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Signaling", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := signalingRows(snap)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No runs recorded")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func signalingRows(snap *daemonctl.Snapshot) [][]string {
	if snap.Reachable && snap.Status.RunID != "" {
		status := snap.Status
		rows := [][]string{
			{"Run", status.RunID},
			{"Started", status.StartedAt},
			{"Running time", formatMillis(status.RunningTimeMS, status.ClockAvailable)},
			{"Ad window", titleCase(status.Window)},
		}
		if status.Window == "active" {
			rows = append(rows,
				[]string{"Break event", fmt.Sprintf("#%d", status.WindowStartID)},
				[]string{"Break ends", formatMillis(status.WindowEndMS, true)},
			)
		}
		rows = append(rows,
			[]string{"Last event id", fmt.Sprintf("%d", status.LastEventID)},
			[]string{"Splice-in armed", yesNo(status.SpliceInArmed)},
			[]string{"Splice-outs", fmt.Sprintf("%d", status.Summary.SpliceOuts)},
			[]string{"Splice-ins", fmt.Sprintf("%d", status.Summary.SpliceIns)},
			[]string{"Failed dispatches", fmt.Sprintf("%d", status.Summary.Failed)},
			[]string{"Dropped requests", fmt.Sprintf("%d", status.DroppedRequests)},
			[]string{"Sections written", humanize.Comma(int64(status.SectionsWritten))},
			[]string{"Output written", humanize.IBytes(status.BytesWritten)},
		)
		return rows
	}
	if snap.LastRun == nil {
		return nil
	}
	run := snap.LastRun
	ended := "still open"
	if run.EndedAt != nil {
		ended = humanize.Time(*run.EndedAt)
	}
	return [][]string{
		{"Last run", run.ID},
		{"Started", humanize.Time(run.StartedAt)},
		{"Ended", ended},
		{"Splice-outs", fmt.Sprintf("%d", snap.OfflineTotal.SpliceOuts)},
		{"Splice-ins", fmt.Sprintf("%d", snap.OfflineTotal.SpliceIns)},
		{"Failed dispatches", fmt.Sprintf("%d", snap.OfflineTotal.Failed)},
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, paused bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{Paused: paused}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if config := ctx.configPath(); config != "" {
		opts.ConfigPath = config
	}
	return opts
}
