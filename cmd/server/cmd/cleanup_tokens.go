package cmd

import (
	"fmt"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/jobs"
	"github.com/Togather-Foundation/eventhub/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newCleanupTokensCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired refresh tokens once and exit",
		Long: `Runs a single sweep of the refresh token cleaner. Useful from cron when
the in-process cleaner is disabled (TOKEN_CLEANER_ENABLED=false).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging)

			db, err := postgres.Open(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			deleted, err := jobs.NewTokenCleaner(db, cfg.Cleaner.Interval, logger).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired refresh tokens\n", deleted)
			return nil
		},
	}
}
