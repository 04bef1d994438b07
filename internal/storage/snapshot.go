package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotManager takes point-in-time copies of the database before bulk rewrites.
type SnapshotManager struct {
	db           *sql.DB
	dbPath       string
	snapshotsDir string
}

// SnapshotInfo describes a snapshot on disk.
type SnapshotInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// Snapshot errors.
var (
	ErrSnapshotExists      = errors.New("snapshot already exists")
	ErrSnapshotUnsupported = errors.New("snapshots require a file-backed database")
	ErrInvalidSnapshotTag  = errors.New("invalid snapshot tag")
)

// maxAutoSnapshots is how many automatic snapshots are kept.
const maxAutoSnapshots = 5

// NewSnapshotManager creates a snapshot manager that writes next to the database file.
func NewSnapshotManager(db *sql.DB, dbPath string) (*SnapshotManager, error) {
	if dbPath == ":memory:" {
		return nil, ErrSnapshotUnsupported
	}

	snapshotsDir := filepath.Join(filepath.Dir(dbPath), "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{
		db:           db,
		dbPath:       dbPath,
		snapshotsDir: snapshotsDir,
	}, nil
}

// Create copies the database into the snapshots directory under tag.
func (sm *SnapshotManager) Create(ctx context.Context, tag, description string) (*SnapshotInfo, error) {
	return sm.create(ctx, tag, description, false)
}

// Auto takes an automatic snapshot named after the operation and prunes old ones.
func (sm *SnapshotManager) Auto(ctx context.Context, operation string) (*SnapshotInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, time.Now().UTC().Format("20060102-150405.000000"))
	info, err := sm.create(ctx, tag, "Automatic snapshot before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}

	if err := sm.pruneAuto(ctx); err != nil {
		slog.Warn("failed to prune old automatic snapshots", "error", err)
	}

	return info, nil
}

func (sm *SnapshotManager) create(ctx context.Context, tag, description string, auto bool) (*SnapshotInfo, error) {
	if tag == "" {
		tag = "snapshot-" + time.Now().UTC().Format("20060102-150405")
	}
	if strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSnapshotTag, tag)
	}

	snapshotPath := filepath.Join(sm.snapshotsDir, tag+".db")
	if _, err := os.Stat(snapshotPath); err == nil {
		return nil, ErrSnapshotExists
	}

	var schemaVersion int
	if err := sm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	counts := sm.rowCounts(ctx)

	// #nosec G201 - tag is checked above and the directory is ours
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	info := &SnapshotInfo{
		ID:            tag,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		FileSize:      stat.Size(),
		RowCounts:     counts,
		SchemaVersion: schemaVersion,
		IsAuto:        auto,
	}

	if err := sm.saveMetadata(info); err != nil {
		if rmErr := os.Remove(snapshotPath); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save snapshot metadata: %w", err)
	}

	slog.Info("Created snapshot", "id", tag, "size", info.FileSize)
	return info, nil
}

// List returns all snapshots, newest first.
func (sm *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sm.snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		// #nosec G304 - path is inside the snapshots directory
		data, err := os.ReadFile(filepath.Join(sm.snapshotsDir, entry.Name()))
		if err != nil {
			continue
		}
		var info SnapshotInfo
		if err := json.Unmarshal(data, &info); err != nil {
			// Skip corrupted metadata files
			continue
		}
		snapshots = append(snapshots, info)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// Delete removes a snapshot and its metadata.
func (sm *SnapshotManager) Delete(_ context.Context, id string) error {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshotTag, id)
	}
	if err := os.Remove(filepath.Join(sm.snapshotsDir, id+".db")); err != nil {
		return fmt.Errorf("failed to remove snapshot %s: %w", id, err)
	}
	if err := os.Remove(filepath.Join(sm.snapshotsDir, id+".meta.json")); err != nil {
		slog.Debug("failed to remove snapshot metadata", "error", err, "id", id)
	}
	return nil
}

func (sm *SnapshotManager) pruneAuto(ctx context.Context) error {
	snapshots, err := sm.List(ctx)
	if err != nil {
		return err
	}

	kept := 0
	for _, s := range snapshots {
		if !s.IsAuto {
			continue
		}
		kept++
		if kept > maxAutoSnapshots {
			if err := sm.Delete(ctx, s.ID); err != nil {
				slog.Debug("failed to delete old automatic snapshot", "error", err, "id", s.ID)
			}
		}
	}
	return nil
}

func (sm *SnapshotManager) rowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)

	// Fixed queries per table; table names never come from input.
	tableQueries := map[string]string{
		"movimientos":       "SELECT COUNT(*) FROM movimientos",
		"reglas_aprendidas": "SELECT COUNT(*) FROM reglas_aprendidas",
		"upgrade_mappings":  "SELECT COUNT(*) FROM upgrade_mappings",
		"audit_log":         "SELECT COUNT(*) FROM audit_log",
	}

	for table, query := range tableQueries {
		var count int
		if err := sm.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			counts[table] = 0
			continue
		}
		counts[table] = count
	}

	return counts
}

func (sm *SnapshotManager) saveMetadata(info *SnapshotInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(sm.snapshotsDir, info.ID+".meta.json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
