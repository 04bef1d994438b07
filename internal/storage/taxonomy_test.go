package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
)

func TestTaxonomyVersions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	v1 := &model.TaxonomyVersion{Version: "v1", Descripcion: "Initial", CreatedBy: "admin"}
	if err := store.CreateTaxonomyVersion(ctx, v1); err != nil {
		t.Fatalf("CreateTaxonomyVersion() error = %v", err)
	}
	if v1.ID == 0 || v1.CreatedAt.IsZero() {
		t.Errorf("version not filled in: %+v", v1)
	}

	dup := &model.TaxonomyVersion{Version: "v1"}
	if err := store.CreateTaxonomyVersion(ctx, dup); !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("duplicate version error = %v, want ErrDuplicateEntry", err)
	}

	if err := store.CreateTaxonomyVersion(ctx, &model.TaxonomyVersion{Version: "v2"}); err != nil {
		t.Fatalf("CreateTaxonomyVersion(v2) error = %v", err)
	}

	got, err := store.GetTaxonomyVersion(ctx, "v1")
	if err != nil {
		t.Fatalf("GetTaxonomyVersion() error = %v", err)
	}
	if got.Descripcion != "Initial" || got.CreatedBy != "admin" {
		t.Errorf("unexpected version: %+v", got)
	}

	if _, err := store.GetTaxonomyVersion(ctx, "v9"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetTaxonomyVersion(v9) error = %v, want ErrNotFound", err)
	}

	versions, err := store.GetTaxonomyVersions(ctx)
	if err != nil {
		t.Fatalf("GetTaxonomyVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("got %d versions, want 2", len(versions))
	}
}

func TestUpgradeMappings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mappings := []model.UpgradeMapping{
		{FromVersion: "v1", ToVersion: "v2", FromCat: "EGRESOS", FromSub: "Gastos_Compras", ToCat: "EGRESOS", ToSub: "Compras", Action: model.ActionRename},
		{FromVersion: "v1", ToVersion: "v2", FromCat: "OTROS", ToCat: "EGRESOS", ToSub: "Varios", Action: model.ActionMove},
		{FromVersion: "v2", ToVersion: "v3", FromCat: "EGRESOS", ToCat: "GASTOS", Action: model.ActionRename},
	}
	if err := store.SaveUpgradeMappings(ctx, mappings); err != nil {
		t.Fatalf("SaveUpgradeMappings() error = %v", err)
	}
	for i, m := range mappings {
		if m.ID == 0 {
			t.Errorf("mapping %d has no ID", i)
		}
	}

	got, err := store.GetUpgradeMappings(ctx, "v1", "v2")
	if err != nil {
		t.Fatalf("GetUpgradeMappings() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d mappings, want 2", len(got))
	}
	if got[0].FromSub != "Gastos_Compras" || got[1].FromSub != "" || got[1].Action != model.ActionMove {
		t.Errorf("mappings not returned in load order: %+v", got)
	}

	none, err := store.GetUpgradeMappings(ctx, "v1", "v3")
	if err != nil {
		t.Fatalf("GetUpgradeMappings() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d mappings for unknown pair, want 0", len(none))
	}

	bad := []model.UpgradeMapping{{FromVersion: "v1", ToVersion: "v2", FromCat: "A", ToCat: "B", Action: "DELETE"}}
	if err := store.SaveUpgradeMappings(ctx, bad); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("invalid action error = %v, want ErrInvalidMapping", err)
	}
	if err := store.SaveUpgradeMappings(ctx, nil); !errors.Is(err, ErrEmptySlice) {
		t.Errorf("empty mappings error = %v, want ErrEmptySlice", err)
	}
}

func TestAuditLog(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	first := &model.AuditEntry{
		Actor:  "admin",
		Action: "catalog_upgrade",
		Entity: "movimientos",
		Before: map[string]any{"from_version": "v1"},
		After:  map[string]any{"to_version": "v2", "procesados": 3},
	}
	if err := store.AppendAudit(ctx, first); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}
	if first.ID == "" || first.Timestamp.IsZero() {
		t.Errorf("audit entry not filled in: %+v", first)
	}

	second := &model.AuditEntry{Actor: "admin", Action: "learn_rule", Entity: "reglas_aprendidas"}
	if err := store.AppendAudit(ctx, second); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	entries, err := store.GetAuditEntries(ctx, service.AuditFilter{})
	if err != nil {
		t.Fatalf("GetAuditEntries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != second.ID {
		t.Fatalf("audit entries not newest first: %+v", entries)
	}
	if entries[0].Before != nil {
		t.Errorf("empty before state = %v, want nil", entries[0].Before)
	}
	if entries[1].After["to_version"] != "v2" || entries[1].After["procesados"] != float64(3) {
		t.Errorf("after state not decoded: %v", entries[1].After)
	}

	filtered, err := store.GetAuditEntries(ctx, service.AuditFilter{Action: "catalog_upgrade", Limit: 5})
	if err != nil {
		t.Fatalf("GetAuditEntries() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != first.ID {
		t.Errorf("action filter returned %+v", filtered)
	}

	if err := store.AppendAudit(ctx, &model.AuditEntry{Action: "x", Entity: "y"}); !errors.Is(err, ErrInvalidAuditEntry) {
		t.Errorf("missing actor error = %v, want ErrInvalidAuditEntry", err)
	}
}

func TestAuditLog_AppendOnly(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.AppendAudit(ctx, &model.AuditEntry{Actor: "a", Action: "b", Entity: "c"}); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	if _, err := store.db.ExecContext(ctx, `UPDATE audit_log SET actor = 'mallory'`); err == nil {
		t.Error("UPDATE on audit_log should be rejected")
	}
	if _, err := store.db.ExecContext(ctx, `DELETE FROM audit_log`); err == nil {
		t.Error("DELETE on audit_log should be rejected")
	}
}
