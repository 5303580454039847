// Command assayctl is the operator CLI for an assay deployment. Submission,
// job, and analytics commands go through the HTTP API; criteria sync,
// reconcile, and analytics init connect to the stores named in config.toml.
// openapi renders the API description from config.toml alone.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const envServerURL = "ASSAY_SERVER_URL"

var (
	serverURL  string
	jsonOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assayctl",
		Short:         "Operate the assay classification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv(envServerURL)
	if defaultURL == "" {
		defaultURL = "http://localhost:8080/api"
	}

	root.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "API base URL")
	root.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newWaitCmd(),
		newQueueCmd(),
		newStatsCmd(),
		newCriteriaCmd(),
		newReconcileCmd(),
		newAnalyticsCmd(),
		newOpenAPICmd(),
	)
	return root
}

func apiClient() *client {
	return newClient(serverURL, nil)
}
