package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Movements and learned rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS movimientos (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					fecha DATETIME NOT NULL,
					descripcion TEXT NOT NULL DEFAULT '',
					detalle TEXT NOT NULL DEFAULT '',
					monto TEXT NOT NULL DEFAULT '0',
					categoria TEXT NOT NULL DEFAULT '',
					subcategoria TEXT NOT NULL DEFAULT '',
					confianza INTEGER NOT NULL DEFAULT 0 CHECK (confianza BETWEEN 0 AND 100),
					fuente TEXT NOT NULL DEFAULT '',
					batch_id INTEGER,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_movimientos_fecha ON movimientos(fecha)`,
				`CREATE INDEX idx_movimientos_categoria ON movimientos(categoria, subcategoria)`,
				`CREATE INDEX idx_movimientos_batch ON movimientos(batch_id)`,

				`CREATE TABLE IF NOT EXISTS reglas_aprendidas (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pattern TEXT NOT NULL UNIQUE,
					categoria TEXT NOT NULL,
					subcategoria TEXT NOT NULL DEFAULT '',
					confianza INTEGER NOT NULL DEFAULT 50 CHECK (confianza BETWEEN 0 AND 100),
					veces_usada INTEGER NOT NULL DEFAULT 1 CHECK (veces_usada >= 1),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Catalog versions and upgrade mappings",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS catalog_versions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					version TEXT NOT NULL UNIQUE,
					descripcion TEXT NOT NULL DEFAULT '',
					created_by TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS upgrade_mappings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					from_version TEXT NOT NULL,
					to_version TEXT NOT NULL,
					from_cat TEXT NOT NULL,
					from_sub TEXT NOT NULL DEFAULT '',
					to_cat TEXT NOT NULL,
					to_sub TEXT NOT NULL DEFAULT '',
					action TEXT NOT NULL CHECK (action IN ('RENAME', 'MOVE', 'DEACTIVATE')),
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_upgrade_mappings_versions ON upgrade_mappings(from_version, to_version)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Append-only audit log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS audit_log (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT NOT NULL UNIQUE,
					actor TEXT NOT NULL,
					action TEXT NOT NULL,
					entity TEXT NOT NULL,
					before_json TEXT,
					after_json TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_audit_log_action ON audit_log(action)`,
				`CREATE TRIGGER audit_log_no_update BEFORE UPDATE ON audit_log
				BEGIN
					SELECT RAISE(ABORT, 'audit_log is append-only');
				END`,
				`CREATE TRIGGER audit_log_no_delete BEFORE DELETE ON audit_log
				BEGIN
					SELECT RAISE(ABORT, 'audit_log is append-only');
				END`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
