package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotManager(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedMovements(t, store)

	sm, err := store.NewSnapshotManager()
	if err != nil {
		t.Fatalf("NewSnapshotManager() error = %v", err)
	}

	info, err := sm.Create(ctx, "before-upgrade", "manual snapshot")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if info.RowCounts["movimientos"] != 4 {
		t.Errorf("row count = %d, want 4", info.RowCounts["movimientos"])
	}
	if info.SchemaVersion != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", info.SchemaVersion, ExpectedSchemaVersion)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(store.dbPath), "snapshots", "before-upgrade.db")); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}

	if _, err := sm.Create(ctx, "before-upgrade", ""); !errors.Is(err, ErrSnapshotExists) {
		t.Errorf("duplicate Create() error = %v, want ErrSnapshotExists", err)
	}
	if _, err := sm.Create(ctx, "../escape", ""); !errors.Is(err, ErrInvalidSnapshotTag) {
		t.Errorf("traversal Create() error = %v, want ErrInvalidSnapshotTag", err)
	}

	auto, err := sm.Auto(ctx, "upgrade")
	if err != nil {
		t.Fatalf("Auto() error = %v", err)
	}
	if !auto.IsAuto {
		t.Error("Auto() snapshot not marked automatic")
	}

	list, err := sm.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d snapshots, want 2", len(list))
	}

	if err := sm.Delete(ctx, "before-upgrade"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, err = sm.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != auto.ID {
		t.Errorf("List() after delete = %+v", list)
	}
}

func TestSnapshotManager_PrunesAutomatic(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sm, err := store.NewSnapshotManager()
	if err != nil {
		t.Fatalf("NewSnapshotManager() error = %v", err)
	}

	for i := 0; i < maxAutoSnapshots+2; i++ {
		if _, err := sm.Auto(ctx, "upgrade"); err != nil {
			t.Fatalf("Auto() #%d error = %v", i, err)
		}
	}

	list, err := sm.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != maxAutoSnapshots {
		t.Errorf("kept %d automatic snapshots, want %d", len(list), maxAutoSnapshots)
	}
}
