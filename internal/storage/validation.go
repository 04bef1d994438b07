// Package storage provides the SQLite persistence layer for movements, learned rules,
// taxonomy versions and the audit log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidMovement    = errors.New("invalid movement")
	ErrInvalidFilter      = errors.New("invalid movement filter")
	ErrInvalidLearnedRule = errors.New("invalid learned rule")
	ErrInvalidVersion     = errors.New("invalid catalog version")
	ErrInvalidMapping     = errors.New("invalid upgrade mapping")
	ErrInvalidAuditEntry  = errors.New("invalid audit entry")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMovements validates movements handed over by the ingestion side.
func validateMovements(movements []model.Movement) error {
	if movements == nil {
		return fmt.Errorf("%w: movements", ErrNilParameter)
	}
	if len(movements) == 0 {
		return fmt.Errorf("%w: movements", ErrEmptySlice)
	}

	for i := range movements {
		if movements[i].Fecha.IsZero() {
			return fmt.Errorf("movement at index %d: %w: missing fecha", i, ErrInvalidMovement)
		}
		if err := validateClassification(&movements[i]); err != nil {
			return fmt.Errorf("movement at index %d: %w", i, err)
		}
	}
	return nil
}

// validateClassifications validates movements about to have their classification written.
func validateClassifications(movements []model.Movement) error {
	if movements == nil {
		return fmt.Errorf("%w: movements", ErrNilParameter)
	}
	for i := range movements {
		if movements[i].ID <= 0 {
			return fmt.Errorf("movement at index %d: %w: missing id", i, ErrInvalidMovement)
		}
		if err := validateClassification(&movements[i]); err != nil {
			return fmt.Errorf("movement %d: %w", movements[i].ID, err)
		}
	}
	return nil
}

func validateClassification(m *model.Movement) error {
	if m.Confianza < 0 || m.Confianza > 100 {
		return fmt.Errorf("%w: confianza %d outside [0,100]", ErrInvalidMovement, m.Confianza)
	}
	if !m.Fuente.IsValid() {
		return fmt.Errorf("%w: unknown fuente %q", ErrInvalidMovement, m.Fuente)
	}
	return nil
}

// validateMovementFilter checks the month format and limits.
func validateMovementFilter(filter service.MovementFilter) error {
	if filter.Month != "" {
		if _, err := time.Parse("2006-01", filter.Month); err != nil {
			return fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalidFilter, filter.Month)
		}
	}
	if filter.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	if filter.ConfidenceBelow != nil && (*filter.ConfidenceBelow < 0 || *filter.ConfidenceBelow > 101) {
		return fmt.Errorf("%w: confidence threshold %d", ErrInvalidFilter, *filter.ConfidenceBelow)
	}
	return nil
}

// validateScope ensures an upgrade scope's date range is ordered.
func validateScope(scope service.UpgradeScope) error {
	if scope.Desde != nil && scope.Hasta != nil && scope.Hasta.Before(*scope.Desde) {
		return fmt.Errorf("%w: hasta %s is before desde %s", ErrInvalidDateRange,
			scope.Hasta.Format(dateLayout), scope.Desde.Format(dateLayout))
	}
	return nil
}

// validateLearnedRule validates a learned rule before it is persisted.
func validateLearnedRule(rule *model.LearnedRule) error {
	if rule == nil {
		return fmt.Errorf("%w: learned rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidLearnedRule)
	}
	if strings.TrimSpace(rule.Categoria) == "" {
		return fmt.Errorf("%w: missing categoria", ErrInvalidLearnedRule)
	}
	if rule.Confidence < 0 || rule.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d outside [0,100]", ErrInvalidLearnedRule, rule.Confidence)
	}
	if rule.TimesUsed < 1 {
		return fmt.Errorf("%w: times used must be at least 1", ErrInvalidLearnedRule)
	}
	return nil
}

// validateTaxonomyVersion validates a catalog version record.
func validateTaxonomyVersion(version *model.TaxonomyVersion) error {
	if version == nil {
		return fmt.Errorf("%w: version", ErrNilParameter)
	}
	if strings.TrimSpace(version.Version) == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidVersion)
	}
	return nil
}

// validateUpgradeMappings validates a batch of upgrade mappings.
func validateUpgradeMappings(mappings []model.UpgradeMapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("%w: mappings", ErrEmptySlice)
	}
	for i, m := range mappings {
		switch {
		case strings.TrimSpace(m.FromVersion) == "" || strings.TrimSpace(m.ToVersion) == "":
			return fmt.Errorf("mapping at index %d: %w: missing version", i, ErrInvalidMapping)
		case strings.TrimSpace(m.FromCat) == "" || strings.TrimSpace(m.ToCat) == "":
			return fmt.Errorf("mapping at index %d: %w: missing categoria", i, ErrInvalidMapping)
		case !m.Action.IsValid():
			return fmt.Errorf("mapping at index %d: %w: unknown action %q", i, ErrInvalidMapping, m.Action)
		}
	}
	return nil
}

// validateAuditEntry validates an audit entry.
func validateAuditEntry(entry *model.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: audit entry", ErrNilParameter)
	}
	if strings.TrimSpace(entry.Actor) == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidAuditEntry)
	}
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidAuditEntry)
	}
	if strings.TrimSpace(entry.Entity) == "" {
		return fmt.Errorf("%w: missing entity", ErrInvalidAuditEntry)
	}
	return nil
}
