// Package engine implements the classification run over stored movements.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/learned"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/google/uuid"
)

// ClassificationEngine classifies batches of movements with learned rules first
// and the cascade as fallback. Manually classified movements are never touched.
type ClassificationEngine struct {
	storage    service.Storage
	classifier Classifier
	config     Config
}

// Config holds configuration options for the classification engine.
type Config struct {
	// Progress, when set, is called after each candidate movement.
	Progress     func(done, total int)
	Retry        service.RetryOptions
	PatternWords int
	DryRun       bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PatternWords: learned.DefaultPatternWords,
		Retry:        common.DefaultRetryOptions(),
	}
}

// New creates a new classification engine with the given dependencies.
func New(storage service.Storage, classifier Classifier, config Config) *ClassificationEngine {
	if config.PatternWords <= 0 {
		config.PatternWords = learned.DefaultPatternWords
	}
	return &ClassificationEngine{
		storage:    storage,
		classifier: classifier,
		config:     config,
	}
}

// Classify runs one batch over the movements selected by filter. The batch is
// read, classified and written inside a single transaction; on any error nothing
// is persisted. Lock contention retries the whole batch.
func (e *ClassificationEngine) Classify(ctx context.Context, filter service.MovementFilter) (*Summary, error) {
	runID := uuid.NewString()
	start := time.Now()

	slog.Info("Starting classification run",
		"run_id", runID,
		"catalog_version", e.classifier.Version(),
		"dry_run", e.config.DryRun,
		"only_uncategorized", filter.OnlyUncategorized)

	var summary *Summary
	err := common.WithRetry(ctx, func() error {
		var runErr error
		summary, runErr = e.run(ctx, filter)
		return runErr
	}, e.config.Retry)
	if err != nil {
		common.LogError(ctx, err, "Classification run failed", common.Fields{"run_id": runID})
		return nil, fmt.Errorf("classification run %s failed: %w", runID, err)
	}

	summary.RunID = runID
	summary.DryRun = e.config.DryRun

	slog.Info("Classification complete",
		"run_id", runID,
		"procesados", summary.Procesados,
		"categorizados", summary.Categorizados,
		"sin_match", summary.SinMatch,
		"preservados", summary.Preservados,
		"duration", time.Since(start))

	return summary, nil
}

func (e *ClassificationEngine) run(ctx context.Context, filter service.MovementFilter) (*Summary, error) {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	movements, err := tx.GetMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get movements: %w", err)
	}

	rules, err := learned.Open(ctx, tx)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded classification candidates",
		"movements", len(movements),
		"learned_rules", rules.Len())

	t := newTally()
	changed := make([]model.Movement, 0, len(movements))

	for i := range movements {
		m := &movements[i]
		t.procesados++

		switch {
		case m.IsManual():
			t.preservados++
		default:
			e.classifyOne(rules, m, t)
			changed = append(changed, *m)
		}

		if e.config.Progress != nil {
			e.config.Progress(i+1, len(movements))
		}
	}

	if len(changed) > 0 {
		if err := tx.UpdateMovementClassifications(ctx, changed); err != nil {
			return nil, fmt.Errorf("failed to save classifications: %w", err)
		}
	}

	if err := rules.Flush(ctx); err != nil {
		return nil, err
	}

	if e.config.DryRun {
		slog.Info("Dry run, rolling back", "changed", len(changed))
		return t.summary(), nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit classifications: %w", err)
	}

	return t.summary(), nil
}

func (e *ClassificationEngine) classifyOne(rules *learned.Store, m *model.Movement, t *tally) {
	if rule, ok := rules.Lookup(m.Descripcion); ok {
		rules.Apply(rule, m)
		t.categorizados++
		t.aplicadosReglaAprendida++
		t.count(m.Categoria, m.Subcategoria)
		return
	}

	res := e.classifier.Classify(m.Descripcion, m.DetailText())
	if res.Categoria == "" {
		res.Categoria, res.Subcategoria, res.Confidence = model.CategoryOtros, model.SubcategoryUnknown, 0
	}
	m.SetClassification(res.Categoria, res.Subcategoria, res.Confidence, model.FuenteCascade)

	if res.Categoria == model.CategoryOtros {
		t.sinMatch++
	} else {
		t.categorizados++
	}
	if res.WasRefined {
		t.refinados++
	}
	t.count(m.Categoria, m.Subcategoria)
}
