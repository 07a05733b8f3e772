package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/splice"
)

func newInspectCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "inspect <hex|base64>",
		Short:       "Decode a captured splice_info_section",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := decodeSectionInput(args[0])
			if err != nil {
				return err
			}
			event, err := splice.DecodeSection(data)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, inspectView(event))
			}
			rows := [][]string{
				{"Kind", titleCase(event.Kind.String())},
				{"Event id", fmt.Sprintf("%d", event.ID)},
				{"PTS time", formatRunningTime(event.Time)},
				{"PTS ticks", fmt.Sprintf("%d", uint64(splice.ToPTS(event.Time)))},
			}
			if event.HasDuration {
				rows = append(rows, []string{"Break duration", event.Duration.String()})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the decoded event as JSON")
	return cmd
}

type inspectedEvent struct {
	Kind       string `json:"kind"`
	EventID    uint32 `json:"event_id"`
	TimeMS     int64  `json:"pts_time_ms"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func inspectView(event splice.Event) inspectedEvent {
	view := inspectedEvent{
		Kind:    event.Kind.String(),
		EventID: uint32(event.ID),
		TimeMS:  event.Time.Milliseconds(),
	}
	if event.HasDuration {
		view.DurationMS = event.Duration.Milliseconds()
	}
	return view
}

// decodeSectionInput accepts hex (optionally 0x-prefixed, spaces allowed) or
// standard base64 as produced by most SCTE-35 tooling.
func decodeSectionInput(input string) ([]byte, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("section data is required")
	}
	compact := strings.Join(strings.Fields(trimmed), "")
	compact = strings.TrimPrefix(strings.TrimPrefix(compact, "0x"), "0X")
	if data, err := hex.DecodeString(compact); err == nil {
		return data, nil
	}
	if data, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return data, nil
	}
	return nil, fmt.Errorf("section data is neither hex nor base64")
}
