package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
)

const learnedRuleColumns = `id, pattern, categoria, subcategoria, confianza, veces_usada, created_at, updated_at`

// GetLearnedRule retrieves a learned rule by its pattern.
func (s *SQLiteStorage) GetLearnedRule(ctx context.Context, pattern string) (*model.LearnedRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	return getLearnedRule(ctx, s.db, pattern)
}

func getLearnedRule(ctx context.Context, q querier, pattern string) (*model.LearnedRule, error) {
	row := q.QueryRowContext(ctx, `SELECT `+learnedRuleColumns+` FROM reglas_aprendidas WHERE pattern = ?`, pattern)
	rule, err := scanLearnedRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("learned rule %q: %w", pattern, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get learned rule: %w", err)
	}
	return rule, nil
}

// GetLearnedRules returns every learned rule in lookup order:
// confidence desc, times used desc, id asc.
func (s *SQLiteStorage) GetLearnedRules(ctx context.Context) ([]model.LearnedRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getLearnedRules(ctx, s.db)
}

func getLearnedRules(ctx context.Context, q querier) ([]model.LearnedRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+learnedRuleColumns+`
		FROM reglas_aprendidas
		ORDER BY confianza DESC, veces_usada DESC, id ASC`)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to query learned rules: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var rules []model.LearnedRule
	for rows.Next() {
		rule, err := scanLearnedRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learned rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learned rules: %w", err)
	}

	return rules, nil
}

// SaveLearnedRule inserts a rule or, when the pattern exists, overwrites it.
// The rule's ID and timestamps are filled in from the stored row.
func (s *SQLiteStorage) SaveLearnedRule(ctx context.Context, rule *model.LearnedRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLearnedRule(rule); err != nil {
		return err
	}
	return saveLearnedRule(ctx, s.db, rule)
}

func saveLearnedRule(ctx context.Context, q querier, rule *model.LearnedRule) error {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO reglas_aprendidas (
			pattern, categoria, subcategoria, confianza, veces_usada, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			categoria = excluded.categoria,
			subcategoria = excluded.subcategoria,
			confianza = excluded.confianza,
			veces_usada = excluded.veces_usada,
			updated_at = excluded.updated_at
		RETURNING id`,
		rule.Pattern, rule.Categoria, rule.Subcategoria, rule.Confidence, rule.TimesUsed,
		rule.CreatedAt.UTC(), now,
	)
	if err := row.Scan(&rule.ID); err != nil {
		return wrapBusy(fmt.Errorf("failed to save learned rule %q: %w", rule.Pattern, err))
	}

	// On conflict the original creation time is kept.
	err := q.QueryRowContext(ctx, `SELECT created_at FROM reglas_aprendidas WHERE id = ?`, rule.ID).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read learned rule %q: %w", rule.Pattern, err)
	}
	rule.UpdatedAt = now
	return nil
}

// DeleteLearnedRule removes a learned rule by pattern.
func (s *SQLiteStorage) DeleteLearnedRule(ctx context.Context, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}
	return deleteLearnedRule(ctx, s.db, pattern)
}

func deleteLearnedRule(ctx context.Context, q querier, pattern string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM reglas_aprendidas WHERE pattern = ?`, pattern)
	if err != nil {
		return wrapBusy(fmt.Errorf("failed to delete learned rule: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("learned rule %q: %w", pattern, common.ErrNotFound)
	}

	return nil
}

func scanLearnedRule(row scanner) (*model.LearnedRule, error) {
	var rule model.LearnedRule
	err := row.Scan(
		&rule.ID, &rule.Pattern, &rule.Categoria, &rule.Subcategoria,
		&rule.Confidence, &rule.TimesUsed, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
