package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/learned"
	"github.com/Veraticus/toro/internal/model"
)

// Audit vocabulary for manual corrections.
const (
	ActionSetManual = "set_manual_classification"
	MovementEntity  = "movimientos"
)

// ErrMissingCategoria is returned when a manual classification has no categoria.
var ErrMissingCategoria = errors.New("categoria is required")

// ManualResult is the outcome of a manual correction.
type ManualResult struct {
	Movement *model.Movement
	// Rule is the learned rule fed by the correction, nil unless remember was set.
	Rule *model.LearnedRule
}

// SetManual records a human classification on a movement with confidence 100.
// When remember is true the movement's description also feeds a learned rule.
// Both changes and their audit entries commit together.
func (e *ClassificationEngine) SetManual(ctx context.Context, id int64, categoria, subcategoria string, remember bool, actor string) (*ManualResult, error) {
	categoria = strings.TrimSpace(categoria)
	if categoria == "" {
		return nil, common.NewUserError("a categoria is required", ErrMissingCategoria)
	}
	subcategoria = strings.TrimSpace(subcategoria)

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := tx.GetMovement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}

	before := classificationState(m)
	m.SetClassification(categoria, subcategoria, 100, model.FuenteManual)

	if err := tx.UpdateMovementClassifications(ctx, []model.Movement{*m}); err != nil {
		return nil, fmt.Errorf("failed to save manual classification: %w", err)
	}

	entry := &model.AuditEntry{
		Actor:  actor,
		Action: ActionSetManual,
		Entity: MovementEntity + ":" + strconv.FormatInt(id, 10),
		Before: before,
		After:  classificationState(m),
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to audit manual classification: %w", err)
	}

	result := &ManualResult{Movement: m}
	if remember {
		admin := learned.NewAdmin(e.storage, e.config.PatternWords)
		result.Rule, err = admin.RememberTx(ctx, tx, actor, m.Descripcion, categoria, subcategoria)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit manual classification: %w", err)
	}

	slog.Info("Manual classification saved",
		"movement_id", id,
		"categoria", categoria,
		"subcategoria", subcategoria,
		"remembered", result.Rule != nil)

	return result, nil
}

func classificationState(m *model.Movement) map[string]any {
	return map[string]any{
		"categoria":    m.Categoria,
		"subcategoria": m.Subcategoria,
		"confianza":    m.Confianza,
		"fuente":       string(m.Fuente),
	}
}
