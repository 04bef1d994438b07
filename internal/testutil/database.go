// Package testutil provides test helpers shared across packages: an in-memory
// database and builders for movements.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/shopspring/decimal"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory database that is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	ids := db.SeedMovements(
//		testutil.NewMovement("Compra VISA Débito").WithDetalle("EPEC CORDOBA").Build(),
//	)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedMovements stores movements and returns their IDs in order.
func (db *TestDB) SeedMovements(movements ...model.Movement) []int64 {
	db.t.Helper()
	ids, err := db.Storage.SaveMovements(context.Background(), movements)
	if err != nil {
		db.t.Fatalf("failed to seed movements: %v", err)
	}
	return ids
}

// MustGetMovement returns the stored movement or fails the test.
func (db *TestDB) MustGetMovement(id int64) model.Movement {
	db.t.Helper()
	m, err := db.Storage.GetMovement(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get movement %d: %v", id, err)
	}
	return *m
}

// AuditEntries returns every audit entry, newest first.
func (db *TestDB) AuditEntries() []model.AuditEntry {
	db.t.Helper()
	entries, err := db.Storage.GetAuditEntries(context.Background(), service.AuditFilter{})
	if err != nil {
		db.t.Fatalf("failed to list audit entries: %v", err)
	}
	return entries
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// MovementBuilder builds movements for tests.
type MovementBuilder struct {
	m model.Movement
}

// NewMovement starts a movement dated 2024-01-15 with the given description.
func NewMovement(descripcion string) *MovementBuilder {
	return &MovementBuilder{m: model.Movement{
		Fecha:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Descripcion: descripcion,
		Monto:       decimal.NewFromInt(-100),
	}}
}

// WithDetalle sets the detail line.
func (b *MovementBuilder) WithDetalle(detalle string) *MovementBuilder {
	b.m.Detalle = detalle
	return b
}

// WithFecha sets the movement date.
func (b *MovementBuilder) WithFecha(fecha time.Time) *MovementBuilder {
	b.m.Fecha = fecha
	return b
}

// WithBatch sets the import batch.
func (b *MovementBuilder) WithBatch(id int64) *MovementBuilder {
	b.m.BatchID = &id
	return b
}

// WithMonto sets the amount.
func (b *MovementBuilder) WithMonto(monto string) *MovementBuilder {
	b.m.Monto = decimal.RequireFromString(monto)
	return b
}

// Classified sets an existing classification.
func (b *MovementBuilder) Classified(categoria, subcategoria string, confianza int, fuente model.Fuente) *MovementBuilder {
	b.m.SetClassification(categoria, subcategoria, confianza, fuente)
	return b
}

// Manual marks the movement as manually classified with confidence 100.
func (b *MovementBuilder) Manual(categoria, subcategoria string) *MovementBuilder {
	return b.Classified(categoria, subcategoria, 100, model.FuenteManual)
}

// Build returns the movement.
func (b *MovementBuilder) Build() model.Movement {
	return b.m
}
