package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"statement-reconciliation-service/cmd/reconciler/config"
	"statement-reconciliation-service/internal/store/postgres"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Migrate applies the embedded PostgreSQL schema. It is safe to run
repeatedly.

Examples:
  reconciler migrate
  reconciler migrate --print`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "print the schema instead of applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if printSchema {
		_, err := fmt.Fprint(cmd.OutOrStdout(), postgres.Schema())
		return err
	}
	if current.Store.Kind != config.StorePostgres {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "store.kind", current.Store.Kind, nil).
			WithSuggestion("migrate only applies to the postgres store")
	}

	return logger.TimedOperation("migrate", logger.WithComponent("migrate"), nil, func() error {
		st, err := postgres.New(cmd.Context(), postgres.Config{URL: current.Database.URL, MaxConns: 1})
		if err != nil {
			return err
		}
		defer st.Close()
		return st.Migrate(cmd.Context())
	})
}
