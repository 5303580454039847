package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the current state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := apiClient().Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), j)
			}
			return printJob(cmd.OutOrStdout(), j)
		},
	}
}

func newWaitCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Block until a job is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := apiClient().Wait(cmd.Context(), args[0], timeout)
			pending := errors.Is(err, errPending)
			if err != nil && !pending {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				err = printJSON(out, j)
			} else {
				err = printJob(out, j)
			}
			if err != nil {
				return err
			}
			if pending {
				return fmt.Errorf("%w after %s", errPending, timeout)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Maximum time to wait")
	return cmd
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show queue depth and live workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := apiClient().Queue(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d, running %d, workers %d\n", info.Queued, info.Running, info.Workers)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var (
		days  int
		daily bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Match statistics from the analytical log",
		Long: `Stats prints per-criterion aggregates. With --daily it prints one row per
ingest day instead, over the last 7 days unless --days is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daily {
				if !cmd.Flags().Changed("days") {
					days = 7
				}
				stats, err := apiClient().Daily(cmd.Context(), days)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				return printDaily(cmd.OutOrStdout(), stats)
			}

			stats, err := apiClient().Stats(cmd.Context(), days)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Window in days")
	cmd.Flags().BoolVar(&daily, "daily", false, "Aggregate per ingest day")
	return cmd
}
