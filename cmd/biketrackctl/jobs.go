package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/phoenix-bikes/biketrack/jobs"
)

func newJobsCmd(tk toolkit) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth for each job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := tk.openQueues()
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY")
			for _, name := range []string{jobs.QueueMail, jobs.QueueDefault} {
				info, err := q.GetQueueInfo(name)
				if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
					return err
				}
				if info == nil {
					info = &asynq.QueueInfo{Queue: name}
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, info.Pending, info.Active, info.Scheduled, info.Retry)
			}
			return tw.Flush()
		},
	}

	var retention time.Duration
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Queue an idempotency key cleanup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := jobs.NewCleanupTask(retention)
			if err != nil {
				return err
			}
			q, err := tk.openQueues()
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			info, err := q.Enqueue(ctx, task, asynq.MaxRetry(3))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	cleanupCmd.Flags().DurationVar(&retention, "retention", 72*time.Hour, "delete keys older than this")

	jobsCmd.AddCommand(statsCmd, cleanupCmd)
	return jobsCmd
}
