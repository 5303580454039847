package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/api"
	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/infrastructure"
	"github.com/JaimeStill/assay/internal/sink"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/pkg/openapi"
)

// stores connects directly to the backing services named in config.toml.
type stores struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
}

func openStores() (*stores, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	return &stores{cfg: cfg, infra: infra}, nil
}

func (s *stores) criteria() criteria.System {
	return criteria.New(s.infra.Database.Connection(), s.infra.Logger, s.cfg.API.Pagination)
}

func (s *stores) events() events.System {
	return events.New(s.infra.Warehouse.Conn(), s.infra.Logger)
}

func newCriteriaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "Manage the criterion registry",
	}
	cmd.AddCommand(newCriteriaSyncCmd(), newCriteriaListCmd())
	return cmd
}

func newCriteriaSyncCmd() *cobra.Command {
	var (
		file  string
		prune bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply a YAML seed file to the registry",
		Long: `Sync creates new criteria, bumps the version of criteria whose text or
threshold changed, and with --prune deactivates criteria missing from the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := criteria.LoadSeed(file)
			if err != nil {
				return err
			}

			s, err := openStores()
			if err != nil {
				return err
			}

			result, err := s.criteria().Sync(cmd.Context(), seeds, prune)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "created:     %s\n", joinOrDash(result.Created))
			fmt.Fprintf(out, "updated:     %s\n", joinOrDash(result.Updated))
			fmt.Fprintf(out, "unchanged:   %s\n", joinOrDash(result.Unchanged))
			fmt.Fprintf(out, "deactivated: %s\n", joinOrDash(result.Deactivated))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "criteria.yaml", "Seed file")
	cmd.Flags().BoolVar(&prune, "prune", false, "Deactivate criteria missing from the file")
	return cmd
}

func newCriteriaListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient().Criteria(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, result)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVERSION\tACTIVE\tTHRESHOLD\tTEXT")
			for _, c := range result.Data {
				threshold := "-"
				if c.Threshold != nil {
					threshold = fmt.Sprintf("%.2f", *c.Threshold)
				}
				fmt.Fprintf(tw, "%s\t%d\t%t\t%s\t%s\n", c.ID, c.Version, c.IsActive, threshold, c.Text)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "page %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "Page size")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one analytical backfill pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores()
			if err != nil {
				return err
			}

			db := s.infra.Database.Connection()
			r := sink.NewReconciler(
				analyses.New(db, s.infra.Logger, s.cfg.API.Pagination),
				s.events(),
				sources.New(db, s.infra.Storage, s.infra.Logger, s.cfg.API.Pagination),
				&s.cfg.Sink,
				s.infra.Logger,
			)

			result, err := r.Run(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %d, failed %d, gave up %d\n",
				result.Recorded, result.Failed, result.GaveUp)
			return nil
		},
	}
}

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Manage the analytical store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the events table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores()
			if err != nil {
				return err
			}
			if err := s.events().EnsureTable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "events table ready")
			return nil
		},
	})
	return cmd
}

func newOpenAPICmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the API description from config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			spec := api.NewSpec(cfg)
			if output == "" || output == "-" {
				data, err := openapi.MarshalJSON(spec)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			if err := openapi.WriteJSON(spec, output); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
