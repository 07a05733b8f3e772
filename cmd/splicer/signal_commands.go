package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"splicer/internal/ipc"
)

func newSignalCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newTriggerCommand(ctx),
		newMatchCommand(ctx),
		newPipelineCommand(ctx),
	}
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var lead time.Duration
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Schedule an ad break now",
		Long: "Schedule a splice-out at the current running time plus --lead and a paired\n" +
			"splice-in after --duration. Rejected while an ad break is already active.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lead < 0 {
				return fmt.Errorf("--lead must not be negative")
			}
			if duration < 0 {
				return fmt.Errorf("--duration must not be negative")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger(ipc.TriggerRequest{
					LeadMillis:     lead.Milliseconds(),
					DurationMillis: duration.Milliseconds(),
				})
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing trigger response")
				}
				if !resp.Accepted {
					return fmt.Errorf("trigger rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), acceptedMessage(resp.Message, "Ad break scheduled"))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&lead, "lead", 0, "Lead time before the splice-out (0 splices at the current running time)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Ad break duration (0 uses triggers.ad_duration_seconds)")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <reference>",
		Short: "Report a content detector match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference := strings.TrimSpace(args[0])
			if reference == "" {
				return errors.New("reference is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Match(reference)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing match response")
				}
				if !resp.Accepted {
					return fmt.Errorf("match rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), acceptedMessage(resp.Message, "Match reported"))
				return nil
			})
		},
	}
}

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "pipeline <play|pause|stop>",
		Short:     "Change the pipeline clock state",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"play", "pause", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			state := strings.ToLower(strings.TrimSpace(args[0]))
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pipeline(state)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing pipeline response")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s\n", resp.State)
				return nil
			})
		},
	}
}

func acceptedMessage(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}
