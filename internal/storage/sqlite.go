package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"

	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query is written once.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers; batches hold it for their whole transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// NewSnapshotManager creates a snapshot manager for this storage instance.
func (s *SQLiteStorage) NewSnapshotManager() (*SnapshotManager, error) {
	return NewSnapshotManager(s.db, s.dbPath)
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to begin transaction: %w", err))
	}

	return &sqliteTransaction{tx: tx}, nil
}

// IsBusy reports whether err comes from SQLite lock contention.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// wrapBusy tags lock contention with common.ErrStoreBusy so callers can retry.
func wrapBusy(err error) error {
	if err != nil && IsBusy(err) {
		return fmt.Errorf("%w: %w", common.ErrStoreBusy, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	return wrapBusy(t.tx.Commit())
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}

// Transaction methods run the shared implementation against the open transaction.

func (t *sqliteTransaction) SaveMovements(ctx context.Context, movements []model.Movement) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMovements(movements); err != nil {
		return nil, err
	}
	return saveMovements(ctx, t.tx, movements)
}

func (t *sqliteTransaction) GetMovement(ctx context.Context, id int64) (*model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getMovement(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetMovements(ctx context.Context, filter service.MovementFilter) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMovementFilter(filter); err != nil {
		return nil, err
	}
	return getMovements(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetMovementsInScope(ctx context.Context, scope service.UpgradeScope) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	return getMovementsInScope(ctx, t.tx, scope)
}

func (t *sqliteTransaction) UpdateMovementClassifications(ctx context.Context, movements []model.Movement) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateClassifications(movements); err != nil {
		return err
	}
	return updateMovementClassifications(ctx, t.tx, movements)
}

func (t *sqliteTransaction) GetLearnedRule(ctx context.Context, pattern string) (*model.LearnedRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	return getLearnedRule(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) GetLearnedRules(ctx context.Context) ([]model.LearnedRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getLearnedRules(ctx, t.tx)
}

func (t *sqliteTransaction) SaveLearnedRule(ctx context.Context, rule *model.LearnedRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLearnedRule(rule); err != nil {
		return err
	}
	return saveLearnedRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) DeleteLearnedRule(ctx context.Context, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}
	return deleteLearnedRule(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) CreateTaxonomyVersion(ctx context.Context, version *model.TaxonomyVersion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTaxonomyVersion(version); err != nil {
		return err
	}
	return createTaxonomyVersion(ctx, t.tx, version)
}

func (t *sqliteTransaction) GetTaxonomyVersion(ctx context.Context, version string) (*model.TaxonomyVersion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(version, "version"); err != nil {
		return nil, err
	}
	return getTaxonomyVersion(ctx, t.tx, version)
}

func (t *sqliteTransaction) GetTaxonomyVersions(ctx context.Context) ([]model.TaxonomyVersion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getTaxonomyVersions(ctx, t.tx)
}

func (t *sqliteTransaction) SaveUpgradeMappings(ctx context.Context, mappings []model.UpgradeMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUpgradeMappings(mappings); err != nil {
		return err
	}
	return saveUpgradeMappings(ctx, t.tx, mappings)
}

func (t *sqliteTransaction) GetUpgradeMappings(ctx context.Context, fromVersion, toVersion string) ([]model.UpgradeMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUpgradeMappings(ctx, t.tx, fromVersion, toVersion)
}

func (t *sqliteTransaction) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEntry(entry); err != nil {
		return err
	}
	return appendAudit(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetAuditEntries(ctx context.Context, filter service.AuditFilter) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getAuditEntries(ctx, t.tx, filter)
}
