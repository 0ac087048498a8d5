package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies all pending schema migrations to the configured database.
Running it against an up-to-date database is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer st.Close()

		if err := st.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		logger.Info("database is up to date", zap.String("driver", st.Driver()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
