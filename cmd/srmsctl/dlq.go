package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/outbox"
)

type deadLetterReader interface {
	Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
	Query(ctx context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error)
}

type openDeadLetters func(ctx context.Context) (deadLetterReader, func(), error)

func postgresDeadLetters(logg *logger.Logger) openDeadLetters {
	return func(ctx context.Context) (deadLetterReader, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return outbox.NewDeadLetters(client.DB()), func() { _ = client.Close() }, nil
	}
}

func newDLQCmd(open openDeadLetters) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect alerts the publisher gave up on",
	}
	cmd.AddCommand(newDLQListCmd(open), newDLQShowCmd(open))
	return cmd
}

func newDLQListCmd(open openDeadLetters) *cobra.Command {
	var (
		reason string
		since  time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := outbox.DeadLetterFilter{Reason: enums.DLQReason(reason), Limit: limit}
			if reason != "" && !filter.Reason.IsValid() {
				return fmt.Errorf("unknown reason %q", reason)
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			return withDeadLetters(cmd, open, func(ctx context.Context, letters deadLetterReader) error {
				rows, err := letters.Query(ctx, filter)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FAILED AT\tEVENT\tTYPE\tREASON\tATTEMPTS")
				for _, row := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
						row.FailedAt.UTC().Format(time.RFC3339), row.EventID, row.EventType, row.ErrorReason, row.AttemptCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "max_attempts, non_retryable or unresolvable")
	cmd.Flags().DurationVar(&since, "since", 0, "only letters newer than this, e.g. 24h")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows (default 50)")
	return cmd
}

func newDLQShowCmd(open openDeadLetters) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Print one dead letter with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("event id: %w", err)
			}
			return withDeadLetters(cmd, open, func(ctx context.Context, letters deadLetterReader) error {
				row, err := letters.Get(ctx, id)
				if err != nil {
					return err
				}
				if row == nil {
					return fmt.Errorf("no dead letter for event %s", id)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"event_id":       row.EventID,
					"event_type":     row.EventType,
					"aggregate_type": row.AggregateType,
					"aggregate_id":   row.AggregateID,
					"reason":         row.ErrorReason,
					"error":          row.ErrorMessage,
					"attempts":       row.AttemptCount,
					"failed_at":      row.FailedAt.UTC(),
					"payload":        row.Payload,
				})
			})
		},
	}
}

func withDeadLetters(cmd *cobra.Command, open openDeadLetters, fn func(context.Context, deadLetterReader) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	letters, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, letters)
}
