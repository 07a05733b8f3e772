package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"splicer/internal/eventlog"
	"splicer/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failed bool
	var allRuns bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent splice dispatch attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(ipc.EventsRequest{Limit: limit, Failed: failed, AllRuns: allRuns})
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing events response")
				}
				if asJSON {
					events := resp.Events
					if events == nil {
						events = []eventlog.Entry{}
					}
					return writeJSON(cmd, events)
				}
				if len(resp.Events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No splice events recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Event", "Kind", "At", "Duration", "Source", "Result", "Recorded"},
					buildEventRows(resp.Events),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only show failed dispatches")
	cmd.Flags().BoolVar(&allRuns, "all", false, "Include events from previous runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output events as JSON")

	cmd.AddCommand(newEventsHealthCommand(ctx))
	return cmd
}

func buildEventRows(entries []eventlog.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		duration := "-"
		if entry.Duration > 0 {
			duration = entry.Duration.String()
		}
		source := entry.Source
		if source == "" {
			source = entry.Reason
		}
		result := "ok"
		if entry.Failed() {
			result = "failed: " + entry.ErrorKind
		}
		event := fmt.Sprintf("#%d", entry.EventID)
		if entry.PairedID != 0 {
			event = fmt.Sprintf("#%d (#%d)", entry.EventID, entry.PairedID)
		}
		rows = append(rows, []string{
			event,
			titleCase(entry.Kind),
			formatRunningTime(entry.RunningTime),
			duration,
			titleCase(source),
			result,
			humanize.Time(entry.RecordedAt),
		})
	}
	return rows
}

func newEventsHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check event log database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing health response")
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := [][]string{
					{"Database", resp.DBPath},
					{"Exists", yesNo(resp.Exists)},
					{"Size", humanize.IBytes(uint64(resp.SizeBytes))},
					{"Schema version", fmt.Sprintf("%d", resp.SchemaVersion)},
					{"Integrity", yesNo(resp.IntegrityOK)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Check", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output health as JSON")
	return cmd
}
