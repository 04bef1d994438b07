package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/toro/internal/cascade"
	"github.com/Veraticus/toro/internal/catalog"
	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/service"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/spf13/cobra"
)

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, func(), error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup, nil
}

// loadCatalog returns the configured rule catalog, falling back to the embedded one.
func loadCatalog() (*catalog.Catalog, error) {
	if appConfig.Rules.Path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(appConfig.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule catalog %s: %w", appConfig.Rules.Path, err)
	}
	return cat, nil
}

func loadClassifier() (*cascade.Classifier, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return cascade.New(cat), nil
}

// actorFlag returns the --as flag when given, the configured actor otherwise.
func actorFlag(cmd *cobra.Command) string {
	if cmd.Flags().Lookup("as") != nil {
		if as, _ := cmd.Flags().GetString("as"); as != "" {
			return as
		}
	}
	return appConfig.Audit.Actor
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("invalid movement id %q", s), common.ErrInvalidInput)
	}
	return id, nil
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s), common.ErrInvalidInput)
	}
	return &t, nil
}

// addScopeFlags registers the flags that narrow an upgrade.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("batch", 0, "only movements of this import batch")
	cmd.Flags().String("desde", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().String("hasta", "", "last day included (YYYY-MM-DD)")
}

func scopeFromFlags(cmd *cobra.Command) (service.UpgradeScope, error) {
	var scope service.UpgradeScope

	if cmd.Flags().Changed("batch") {
		batch, _ := cmd.Flags().GetInt64("batch")
		scope.BatchID = &batch
	}

	desde, _ := cmd.Flags().GetString("desde")
	from, err := parseDay(desde)
	if err != nil {
		return scope, err
	}
	scope.Desde = from

	hasta, _ := cmd.Flags().GetString("hasta")
	to, err := parseDay(hasta)
	if err != nil {
		return scope, err
	}
	scope.Hasta = to

	return scope, nil
}

// addFilterFlags registers the flags that select candidate movements.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("batch", 0, "only movements of this import batch")
	cmd.Flags().String("month", "", "only movements of this month (YYYY-MM)")
	cmd.Flags().Int("confidence-below", 0, "only movements with confianza below this value")
	cmd.Flags().Int("limit", 0, "maximum number of movements (0 = no limit)")
}

func filterFromFlags(cmd *cobra.Command) service.MovementFilter {
	var filter service.MovementFilter

	if cmd.Flags().Changed("batch") {
		batch, _ := cmd.Flags().GetInt64("batch")
		filter.BatchID = &batch
	}
	if cmd.Flags().Changed("confidence-below") {
		below, _ := cmd.Flags().GetInt("confidence-below")
		filter.ConfidenceBelow = &below
	}
	filter.Month, _ = cmd.Flags().GetString("month")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	return filter
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func label(categoria, subcategoria string) string {
	if categoria == "" {
		return "-"
	}
	if subcategoria == "" {
		return categoria
	}
	return categoria + "/" + subcategoria
}

func separator(widths ...int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	return strings.Join(parts, "\t")
}
