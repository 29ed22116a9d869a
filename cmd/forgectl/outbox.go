package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/outbox"
)

func outboxCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and requeue dead-lettered domain events",
	}
	cmd.AddCommand(deadLettersCmd(open), requeueCmd(open))
	return cmd
}

func deadLettersCmd(open opener) *cobra.Command {
	var (
		eventType string
		reason    string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List events the publisher gave up on, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := outbox.DeadLetterFilter{
				EventType: enums.OutboxEventType(eventType),
				Reason:    enums.OutboxDLQErrorReason(reason),
				Limit:     limit,
			}
			if eventType != "" && !filter.EventType.IsValid() {
				return fmt.Errorf("unknown event type %q", eventType)
			}
			if reason != "" && !filter.Reason.IsValid() {
				return fmt.Errorf("unknown reason %q", reason)
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				rows, err := rt.DeadLetters.List(ctx, filter)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
				for _, row := range rows {
					msg := ""
					if row.ErrorMessage != nil {
						msg = *row.ErrorMessage
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						row.EventID, row.EventType, row.ErrorReason, row.AttemptCount,
						row.FailedAt.UTC().Format("2006-01-02T15:04:05Z"), msg)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "only this event type")
	cmd.Flags().StringVar(&reason, "reason", "", "max_attempts or non_retryable")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func requeueCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <event-id>",
		Short: "Hand a dead-lettered event back to the publisher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id: %w", err)
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := rt.DeadLetters.Requeue(ctx, eventID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", eventID)
				return nil
			})
		},
	}
}
