package learned

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/normalize"
	"github.com/Veraticus/toro/internal/service"
)

// Audit vocabulary for learned rule administration.
const (
	ActionLearnRule  = "learn_rule"
	ActionForgetRule = "forget_rule"
	AuditEntity      = "reglas_aprendidas"
)

// Admin administers learned rules outside a classification run.
type Admin struct {
	storage      service.Storage
	patternWords int
}

// NewAdmin creates an Admin. patternWords <= 0 selects DefaultPatternWords.
func NewAdmin(storage service.Storage, patternWords int) *Admin {
	if patternWords <= 0 {
		patternWords = DefaultPatternWords
	}
	return &Admin{
		storage:      storage,
		patternWords: patternWords,
	}
}

// List returns every learned rule in lookup order.
func (a *Admin) List(ctx context.Context) ([]model.LearnedRule, error) {
	rules, err := a.storage.GetLearnedRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list learned rules: %w", err)
	}
	return rules, nil
}

// Remember derives a pattern from desc and records the correction with an audit entry.
func (a *Admin) Remember(ctx context.Context, actor, desc, categoria, subcategoria string) (*model.LearnedRule, error) {
	tx, err := a.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rule, err := a.RememberTx(ctx, tx, actor, desc, categoria, subcategoria)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit learned rule: %w", err)
	}
	return rule, nil
}

// RememberTx is Remember inside a transaction owned by the caller.
func (a *Admin) RememberTx(ctx context.Context, tx service.Transaction, actor, desc, categoria, subcategoria string) (*model.LearnedRule, error) {
	pattern := DerivePattern(desc, a.patternWords)
	if pattern == "" {
		return nil, common.NewUserError(
			fmt.Sprintf("cannot learn from description %q", desc), ErrEmptyPattern)
	}

	var before map[string]any
	existing, err := tx.GetLearnedRule(ctx, pattern)
	switch {
	case err == nil:
		before = ruleState(existing)
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("failed to get learned rule: %w", err)
	}

	rule, err := NewStore(tx).ObtainOrCreate(ctx, pattern, categoria, subcategoria)
	if err != nil {
		return nil, err
	}

	entry := &model.AuditEntry{
		Actor:  actor,
		Action: ActionLearnRule,
		Entity: AuditEntity,
		Before: before,
		After:  ruleState(rule),
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to audit learned rule: %w", err)
	}

	slog.Info("Learned rule",
		"pattern", rule.Pattern,
		"categoria", rule.Categoria,
		"subcategoria", rule.Subcategoria,
		"confidence", rule.Confidence,
		"times_used", rule.TimesUsed)
	return rule, nil
}

// Forget deletes the rule for pattern and records an audit entry.
// The pattern is canonicalized first, so it may be typed in any case.
func (a *Admin) Forget(ctx context.Context, actor, pattern string) error {
	pattern = normalize.Canonical(pattern)
	if pattern == "" {
		return ErrEmptyPattern
	}

	tx, err := a.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.GetLearnedRule(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to get learned rule: %w", err)
	}
	if err := tx.DeleteLearnedRule(ctx, pattern); err != nil {
		return fmt.Errorf("failed to delete learned rule: %w", err)
	}

	entry := &model.AuditEntry{
		Actor:  actor,
		Action: ActionForgetRule,
		Entity: AuditEntity,
		Before: ruleState(existing),
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to audit forgotten rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("Forgot learned rule", "pattern", pattern)
	return nil
}

func ruleState(rule *model.LearnedRule) map[string]any {
	return map[string]any{
		"pattern":      rule.Pattern,
		"categoria":    rule.Categoria,
		"subcategoria": rule.Subcategoria,
		"confidence":   rule.Confidence,
		"times_used":   rule.TimesUsed,
	}
}
