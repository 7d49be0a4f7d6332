package cmd

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"statement-reconciliation-service/cmd/reconciler/config"
	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/internal/store/memory"
	"statement-reconciliation-service/internal/store/postgres"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// seedData is the JSON fixture format accepted by the memory store.
type seedData struct {
	Statements []*models.BankStatement    `json:"statements"`
	Items      []*models.StatementItem    `json:"items"`
	Movements  []*models.TreasuryMovement `json:"movements"`
}

// loadSeed reads a JSON fixture and loads it into s.
func loadSeed(s *memory.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "store.seed_file", path, err)
	}
	var seed seedData
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "store.seed_file", path, err).
			WithSuggestion("the seed file holds statements, items and movements arrays")
	}
	for _, st := range seed.Statements {
		if err := st.Validate(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "store.seed_file", path, err)
		}
	}
	if err := s.Seed(seed.Statements, seed.Items, seed.Movements); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "store.seed_file", path, err)
	}
	return nil
}

// openStore opens the backend selected by the configuration.
func openStore(ctx context.Context, c *config.AppConfig, log logger.Logger) (store.Store, error) {
	switch c.Store.Kind {
	case config.StoreMemory:
		s := memory.New()
		if c.Store.SeedFile != "" {
			if err := loadSeed(s, c.Store.SeedFile); err != nil {
				return nil, err
			}
			log.WithField("seed_file", c.Store.SeedFile).Info("Memory store seeded")
		} else {
			log.Warn("Using an empty memory store; data is lost on exit")
		}
		return s, nil
	default:
		s, err := postgres.New(ctx, postgres.Config{URL: c.Database.URL, MaxConns: c.Database.MaxConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// newService opens the store and builds the reconciliation service on it.
// The caller must close the returned store.
func newService(ctx context.Context, c *config.AppConfig, log logger.Logger) (*reconciler.Service, store.Store, error) {
	s, err := openStore(ctx, c, log)
	if err != nil {
		return nil, nil, err
	}
	svc, err := reconciler.NewService(s, c.ReconcilerConfig(), log)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return svc, s, nil
}

// callerFlags registers --company and --user on cmd.
func callerFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("company", 0, "company the statements belong to (required)")
	cmd.Flags().Int64("user", 0, "user recorded on closes and manual links")
	_ = cmd.MarkFlagRequired("company")
}

func callerFrom(cmd *cobra.Command) (reconciler.Caller, error) {
	company, err := cmd.Flags().GetInt64("company")
	if err != nil {
		return reconciler.Caller{}, err
	}
	user, err := cmd.Flags().GetInt64("user")
	if err != nil {
		return reconciler.Caller{}, err
	}
	caller := reconciler.Caller{CompanyID: company, UserID: user}
	return caller, caller.Validate()
}

// parseStatementIDs parses positional statement ids.
func parseStatementIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	seen := make(map[int64]bool, len(args))
	for _, a := range args {
		id, err := parsePositiveID(a)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func parsePositiveID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError(errors.CodeInvalidID, "statementId", raw, nil)
	}
	return id, nil
}
