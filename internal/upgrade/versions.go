package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/toro/internal/model"
)

// CreateVersion registers a taxonomy version. Version names are unique.
func (m *Manager) CreateVersion(ctx context.Context, version, descripcion, createdBy string) (*model.TaxonomyVersion, error) {
	v := &model.TaxonomyVersion{
		Version:     strings.TrimSpace(version),
		Descripcion: descripcion,
		CreatedBy:   actorOrDefault(createdBy),
	}

	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CreateTaxonomyVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create catalog version: %w", err)
	}

	entry := &model.AuditEntry{
		Actor:  v.CreatedBy,
		Action: ActionCreateVersion,
		Entity: EntityVersion,
		After: map[string]any{
			"version":     v.Version,
			"descripcion": v.Descripcion,
		},
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to audit catalog version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit catalog version: %w", err)
	}

	slog.Info("Created catalog version", "version", v.Version, "created_by", v.CreatedBy)
	return v, nil
}

// ListVersions returns every registered version, newest first.
func (m *Manager) ListVersions(ctx context.Context) ([]model.TaxonomyVersion, error) {
	versions, err := m.storage.GetTaxonomyVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog versions: %w", err)
	}
	return versions, nil
}

// LoadMappings validates and stores a batch of mappings with one audit entry.
// It returns the number of mappings stored.
func (m *Manager) LoadMappings(ctx context.Context, actor string, mappings []model.UpgradeMapping) (int, error) {
	if err := ValidateMappings(mappings); err != nil {
		return 0, err
	}

	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveUpgradeMappings(ctx, mappings); err != nil {
		return 0, fmt.Errorf("failed to save upgrade mappings: %w", err)
	}

	entry := &model.AuditEntry{
		Actor:  actorOrDefault(actor),
		Action: ActionLoadMappings,
		Entity: EntityMappings,
		After: map[string]any{
			"count": len(mappings),
			"pairs": versionPairs(mappings),
		},
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to audit upgrade mappings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upgrade mappings: %w", err)
	}

	slog.Info("Loaded upgrade mappings", "count", len(mappings))
	return len(mappings), nil
}

// Mappings returns the mappings from one version to another in declared order.
func (m *Manager) Mappings(ctx context.Context, from, to string) ([]model.UpgradeMapping, error) {
	mappings, err := m.storage.GetUpgradeMappings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get upgrade mappings: %w", err)
	}
	return mappings, nil
}

// versionPairs lists the distinct "from->to" pairs in first-seen order.
func versionPairs(mappings []model.UpgradeMapping) []string {
	seen := make(map[string]bool)
	var pairs []string
	for _, mp := range mappings {
		pair := mp.FromVersion + "->" + mp.ToVersion
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs
}
