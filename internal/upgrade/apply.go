package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Snapshotter takes a database snapshot before a destructive operation.
type Snapshotter interface {
	Auto(ctx context.Context, operation string) (*storage.SnapshotInfo, error)
}

// MappingImpact counts the movements attributed to one mapping.
type MappingImpact struct {
	Mapping  model.UpgradeMapping `json:"mapping"`
	Affected int                  `json:"affected"`
}

// Simulation is the projected effect of an upgrade. Manual movements are counted
// because Apply reports them as preserved.
type Simulation struct {
	From    string          `json:"from_version"`
	To      string          `json:"to_version"`
	Impacts []MappingImpact `json:"impacts"`
	Total   int             `json:"total"`
}

// ApplyRequest describes an upgrade run.
type ApplyRequest struct {
	Scope   service.UpgradeScope
	From    string
	To      string
	Actor   string
	Confirm bool
	// Snapshot takes a database snapshot first when the Manager has a Snapshotter.
	Snapshot bool
}

// ApplyResult reports an applied upgrade.
type ApplyResult struct {
	Snapshot     *storage.SnapshotInfo `json:"snapshot,omitempty"`
	RunID        string                `json:"run_id"`
	AuditID      string                `json:"audit_id"`
	Procesados   int                   `json:"procesados"`
	Actualizados int                   `json:"actualizados"`
	Preservados  int                   `json:"preservados"`
}

// Simulate counts, per mapping, the movements an upgrade would touch. Each
// movement is attributed to the first mapping in declared order that matches it.
// Nothing is modified.
func (m *Manager) Simulate(ctx context.Context, from, to string, scope service.UpgradeScope) (*Simulation, error) {
	mappings, err := m.requireMappings(ctx, from, to)
	if err != nil {
		return nil, err
	}

	movements, err := m.storage.GetMovementsInScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to get movements: %w", err)
	}

	counts := make([]int, len(mappings))
	total := 0
	for _, mv := range movements {
		if i := firstMatch(mappings, mv.Categoria, mv.Subcategoria); i >= 0 {
			counts[i]++
			total++
		}
	}

	sim := &Simulation{From: from, To: to, Total: total}
	for i, mp := range mappings {
		if counts[i] > 0 {
			sim.Impacts = append(sim.Impacts, MappingImpact{Mapping: mp, Affected: counts[i]})
		}
	}
	sort.SliceStable(sim.Impacts, func(i, j int) bool {
		return sim.Impacts[i].Affected > sim.Impacts[j].Affected
	})

	return sim, nil
}

// Apply rewrites every non-manual movement matched by a mapping to the mapping's
// target with confidence 90 and provenance upgrade_catalogo. The rewrite and its
// single audit entry commit together.
func (m *Manager) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if !req.Confirm {
		return nil, common.NewUserError("re-run with confirmation to apply the upgrade", ErrConfirmationRequired)
	}

	mappings, err := m.requireMappings(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	slog.Info("Starting catalog upgrade",
		"run_id", runID,
		"from_version", req.From,
		"to_version", req.To,
		"mappings", len(mappings))

	var snapshot *storage.SnapshotInfo
	if req.Snapshot && m.snapshots != nil {
		snapshot, err = m.snapshots.Auto(ctx, "upgrade")
		switch {
		case errors.Is(err, storage.ErrSnapshotUnsupported):
			slog.Warn("Skipping snapshot", "reason", err)
		case err != nil:
			return nil, fmt.Errorf("failed to snapshot before upgrade: %w", err)
		default:
			slog.Info("Created snapshot", "id", snapshot.ID)
		}
	}

	var result *ApplyResult
	err = common.WithRetry(ctx, func() error {
		var runErr error
		result, runErr = m.apply(ctx, req, mappings)
		return runErr
	}, m.retry)
	if err != nil {
		common.LogError(ctx, err, "Catalog upgrade failed", common.Fields{"run_id": runID})
		return nil, fmt.Errorf("catalog upgrade %s failed: %w", runID, err)
	}

	result.RunID = runID
	result.Snapshot = snapshot

	slog.Info("Catalog upgrade complete",
		"run_id", runID,
		"procesados", result.Procesados,
		"actualizados", result.Actualizados,
		"preservados", result.Preservados,
		"audit_id", result.AuditID)

	return result, nil
}

func (m *Manager) apply(ctx context.Context, req ApplyRequest, mappings []model.UpgradeMapping) (*ApplyResult, error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	movements, err := tx.GetMovementsInScope(ctx, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to get movements: %w", err)
	}

	result := &ApplyResult{}
	var changed []model.Movement
	for _, mv := range movements {
		i := firstMatch(mappings, mv.Categoria, mv.Subcategoria)
		if i < 0 {
			continue
		}
		result.Procesados++

		if mv.IsManual() {
			result.Preservados++
			continue
		}

		mv.SetClassification(mappings[i].ToCat, mappings[i].ToSub, UpgradeConfidence, model.FuenteUpgrade)
		changed = append(changed, mv)
		result.Actualizados++
	}

	if len(changed) > 0 {
		if err := tx.UpdateMovementClassifications(ctx, changed); err != nil {
			return nil, fmt.Errorf("failed to save upgraded movements: %w", err)
		}
	}

	entry := &model.AuditEntry{
		Actor:  actorOrDefault(req.Actor),
		Action: ActionUpgrade,
		Entity: EntityMovement,
		Before: map[string]any{
			"from_version": req.From,
			"scope":        scopeState(req.Scope),
		},
		After: map[string]any{
			"to_version":   req.To,
			"procesados":   result.Procesados,
			"actualizados": result.Actualizados,
			"preservados":  result.Preservados,
		},
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to audit upgrade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upgrade: %w", err)
	}

	result.AuditID = entry.ID
	return result, nil
}

func (m *Manager) requireMappings(ctx context.Context, from, to string) ([]model.UpgradeMapping, error) {
	mappings, err := m.storage.GetUpgradeMappings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get upgrade mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w for %s -> %s", ErrNoMappings, from, to)
	}
	return mappings, nil
}

func scopeState(scope service.UpgradeScope) map[string]any {
	state := map[string]any{}
	if scope.BatchID != nil {
		state["batch_id"] = *scope.BatchID
	}
	if scope.Desde != nil {
		state["desde"] = scope.Desde.Format(dateLayout)
	}
	if scope.Hasta != nil {
		state["hasta"] = scope.Hasta.Format(dateLayout)
	}
	return state
}
