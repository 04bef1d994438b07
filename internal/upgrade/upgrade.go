// Package upgrade administers taxonomy versions and their upgrade mappings, and
// rewrites stored classifications from one version to the next.
package upgrade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
)

// Upgrade errors.
var (
	ErrConfirmationRequired = errors.New("upgrade must be confirmed before it is applied")
	ErrNoMappings           = errors.New("no upgrade mappings defined")
	ErrInvalidMapping       = errors.New("invalid upgrade mapping")
)

// Audit vocabulary.
const (
	ActionCreateVersion = "create_catalog_version"
	ActionLoadMappings  = "bulk_load_upgrade_maps"
	ActionUpgrade       = "catalog_upgrade"

	EntityVersion  = "catalog_version"
	EntityMappings = "catalog_upgrade_map"
	EntityMovement = "movimientos"
)

// UpgradeConfidence is the confidence written onto upgraded movements.
const UpgradeConfidence = 90

// DefaultActor is recorded when no actor is given.
const DefaultActor = "system"

// Manager owns taxonomy versions, mappings and upgrades over one store.
type Manager struct {
	storage   service.Storage
	snapshots Snapshotter
	retry     service.RetryOptions
}

// New creates a Manager. Snapshots are disabled until WithSnapshots is called.
func New(storage service.Storage) *Manager {
	return &Manager{
		storage: storage,
		retry:   common.DefaultRetryOptions(),
	}
}

// WithSnapshots enables database snapshots before applied upgrades.
func (m *Manager) WithSnapshots(s Snapshotter) *Manager {
	m.snapshots = s
	return m
}

// WithRetry overrides the retry policy for applied upgrades.
func (m *Manager) WithRetry(opts service.RetryOptions) *Manager {
	m.retry = opts
	return m
}

// ValidateMappings checks required fields and actions. Versions must differ.
func ValidateMappings(mappings []model.UpgradeMapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("%w: at least one mapping is required", ErrInvalidMapping)
	}
	for i, mp := range mappings {
		switch {
		case strings.TrimSpace(mp.FromVersion) == "" || strings.TrimSpace(mp.ToVersion) == "":
			return fmt.Errorf("%w: mapping %d: from_version and to_version are required", ErrInvalidMapping, i+1)
		case mp.FromVersion == mp.ToVersion:
			return fmt.Errorf("%w: mapping %d: from_version equals to_version %q", ErrInvalidMapping, i+1, mp.FromVersion)
		case strings.TrimSpace(mp.FromCat) == "" || strings.TrimSpace(mp.ToCat) == "":
			return fmt.Errorf("%w: mapping %d: from_cat and to_cat are required", ErrInvalidMapping, i+1)
		case !mp.Action.IsValid():
			return fmt.Errorf("%w: mapping %d: action %q must be RENAME, MOVE or DEACTIVATE", ErrInvalidMapping, i+1, mp.Action)
		}
	}
	return nil
}

// firstMatch returns the index of the first mapping whose source matches the
// classification, or -1.
func firstMatch(mappings []model.UpgradeMapping, categoria, subcategoria string) int {
	for i, mp := range mappings {
		if mp.Matches(categoria, subcategoria) {
			return i
		}
	}
	return -1
}

func actorOrDefault(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return DefaultActor
	}
	return actor
}
