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

// CreateTaxonomyVersion records a new catalog version. Versions are unique.
func (s *SQLiteStorage) CreateTaxonomyVersion(ctx context.Context, version *model.TaxonomyVersion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTaxonomyVersion(version); err != nil {
		return err
	}
	return createTaxonomyVersion(ctx, s.db, version)
}

func createTaxonomyVersion(ctx context.Context, q querier, version *model.TaxonomyVersion) error {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO catalog_versions (version, descripcion, created_by, created_at)
		VALUES (?, ?, ?, ?)`,
		version.Version, version.Descripcion, version.CreatedBy, version.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("catalog version %q: %w", version.Version, common.ErrDuplicateEntry)
		}
		return wrapBusy(fmt.Errorf("failed to create catalog version: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get catalog version ID: %w", err)
	}
	version.ID = id
	return nil
}

// GetTaxonomyVersion retrieves a catalog version by name.
func (s *SQLiteStorage) GetTaxonomyVersion(ctx context.Context, version string) (*model.TaxonomyVersion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(version, "version"); err != nil {
		return nil, err
	}
	return getTaxonomyVersion(ctx, s.db, version)
}

func getTaxonomyVersion(ctx context.Context, q querier, version string) (*model.TaxonomyVersion, error) {
	var v model.TaxonomyVersion
	err := q.QueryRowContext(ctx, `
		SELECT id, version, descripcion, created_by, created_at
		FROM catalog_versions WHERE version = ?`, version,
	).Scan(&v.ID, &v.Version, &v.Descripcion, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("catalog version %q: %w", version, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get catalog version: %w", err)
	}
	return &v, nil
}

// GetTaxonomyVersions lists catalog versions, newest first.
func (s *SQLiteStorage) GetTaxonomyVersions(ctx context.Context) ([]model.TaxonomyVersion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getTaxonomyVersions(ctx, s.db)
}

func getTaxonomyVersions(ctx context.Context, q querier) ([]model.TaxonomyVersion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, version, descripcion, created_by, created_at
		FROM catalog_versions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to query catalog versions: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var versions []model.TaxonomyVersion
	for rows.Next() {
		var v model.TaxonomyVersion
		if err := rows.Scan(&v.ID, &v.Version, &v.Descripcion, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog versions: %w", err)
	}

	return versions, nil
}

// SaveUpgradeMappings appends mappings in the given order.
func (s *SQLiteStorage) SaveUpgradeMappings(ctx context.Context, mappings []model.UpgradeMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUpgradeMappings(mappings); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBusy(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveUpgradeMappings(ctx, tx, mappings); err != nil {
		return err
	}

	return wrapBusy(tx.Commit())
}

func saveUpgradeMappings(ctx context.Context, q querier, mappings []model.UpgradeMapping) error {
	now := time.Now().UTC()
	for i := range mappings {
		m := &mappings[i]
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		result, err := q.ExecContext(ctx, `
			INSERT INTO upgrade_mappings (
				from_version, to_version, from_cat, from_sub, to_cat, to_sub, action, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.FromVersion, m.ToVersion, m.FromCat, m.FromSub, m.ToCat, m.ToSub, string(m.Action), m.CreatedAt.UTC(),
		)
		if err != nil {
			return wrapBusy(fmt.Errorf("failed to insert upgrade mapping at index %d: %w", i, err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get upgrade mapping ID: %w", err)
		}
		m.ID = id
	}
	return nil
}

// GetUpgradeMappings returns the mappings for a version pair in the order they were loaded.
func (s *SQLiteStorage) GetUpgradeMappings(ctx context.Context, fromVersion, toVersion string) ([]model.UpgradeMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUpgradeMappings(ctx, s.db, fromVersion, toVersion)
}

func getUpgradeMappings(ctx context.Context, q querier, fromVersion, toVersion string) ([]model.UpgradeMapping, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, from_version, to_version, from_cat, from_sub, to_cat, to_sub, action, created_at
		FROM upgrade_mappings
		WHERE from_version = ? AND to_version = ?
		ORDER BY id ASC`, fromVersion, toVersion)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to query upgrade mappings: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.UpgradeMapping
	for rows.Next() {
		var (
			m      model.UpgradeMapping
			action string
		)
		err := rows.Scan(&m.ID, &m.FromVersion, &m.ToVersion, &m.FromCat, &m.FromSub,
			&m.ToCat, &m.ToSub, &action, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upgrade mapping: %w", err)
		}
		m.Action = model.UpgradeAction(action)
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upgrade mappings: %w", err)
	}

	return mappings, nil
}
