// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/toro/internal/model"
)

// MovementFilter selects the candidate movements for a classification run.
type MovementFilter struct {
	BatchID           *int64
	ConfidenceBelow   *int
	Month             string // YYYY-MM; empty selects every month
	Limit             int
	OnlyUncategorized bool
}

// UpgradeScope optionally narrows the movements an upgrade touches.
// Desde and Hasta are inclusive calendar days compared with each movement's
// stored date; only their year, month and day are used.
type UpgradeScope struct {
	BatchID *int64
	Desde   *time.Time
	Hasta   *time.Time
}

// IsZero reports whether the scope places no restriction.
func (s UpgradeScope) IsZero() bool {
	return s.BatchID == nil && s.Desde == nil && s.Hasta == nil
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	Action string
	Limit  int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Movement operations
	SaveMovements(ctx context.Context, movements []model.Movement) ([]int64, error)
	GetMovement(ctx context.Context, id int64) (*model.Movement, error)
	GetMovements(ctx context.Context, filter MovementFilter) ([]model.Movement, error)
	GetMovementsInScope(ctx context.Context, scope UpgradeScope) ([]model.Movement, error)
	UpdateMovementClassifications(ctx context.Context, movements []model.Movement) error

	// Learned rule operations
	GetLearnedRule(ctx context.Context, pattern string) (*model.LearnedRule, error)
	GetLearnedRules(ctx context.Context) ([]model.LearnedRule, error)
	SaveLearnedRule(ctx context.Context, rule *model.LearnedRule) error
	DeleteLearnedRule(ctx context.Context, pattern string) error

	// Taxonomy operations
	CreateTaxonomyVersion(ctx context.Context, version *model.TaxonomyVersion) error
	GetTaxonomyVersion(ctx context.Context, version string) (*model.TaxonomyVersion, error)
	GetTaxonomyVersions(ctx context.Context) ([]model.TaxonomyVersion, error)
	SaveUpgradeMappings(ctx context.Context, mappings []model.UpgradeMapping) error
	GetUpgradeMappings(ctx context.Context, fromVersion, toVersion string) ([]model.UpgradeMapping, error)

	// Audit operations; entries are append-only
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	GetAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
