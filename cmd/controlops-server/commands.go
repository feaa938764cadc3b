package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/health"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			return database.Close(db)
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Tool health operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Probe every tool once and store the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			checker := health.NewChecker(db, health.Options{
				Timeout:     cfg.HealthCheckTimeout,
				Concurrency: cfg.HealthCheckConcurrency,
				Logger:      logger.Named("health"),
			})
			records, err := checker.RefreshAll(ctx)
			s := health.Summarize(records)
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d up=%d down=%d unknown=%d\n", s.Checked, s.Up, s.Down, s.Unknown)
			return err
		},
	})
	return cmd
}

func newTagsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag registry operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete tags that no tool references",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)

			removed, err := tags.PruneOrphans(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.Info("pruned orphan tags", zap.Int64("removed", removed))
			fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", removed)
			return nil
		},
	})
	return cmd
}
