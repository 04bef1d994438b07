package model

import "time"

// UpgradeAction tags what an upgrade mapping means for the taxonomy.
// The rewrite mechanics are identical for every action.
type UpgradeAction string

// Upgrade actions.
const (
	ActionRename     UpgradeAction = "RENAME"
	ActionMove       UpgradeAction = "MOVE"
	ActionDeactivate UpgradeAction = "DEACTIVATE"
)

// IsValid reports whether a is a known upgrade action.
func (a UpgradeAction) IsValid() bool {
	switch a {
	case ActionRename, ActionMove, ActionDeactivate:
		return true
	}
	return false
}

// TaxonomyVersion identifies one revision of the category taxonomy.
type TaxonomyVersion struct {
	CreatedAt   time.Time `json:"created_at"`
	Version     string    `json:"version"`
	Descripcion string    `json:"descripcion,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	ID          int64     `json:"id"`
}

// UpgradeMapping describes how one (categoria, subcategoria) of a version maps onto the next.
// An empty FromSub matches any subcategoria of FromCat.
type UpgradeMapping struct {
	CreatedAt   time.Time     `json:"created_at" yaml:"-"`
	FromVersion string        `json:"from_version" yaml:"from_version"`
	ToVersion   string        `json:"to_version" yaml:"to_version"`
	FromCat     string        `json:"from_cat" yaml:"from_cat"`
	FromSub     string        `json:"from_sub,omitempty" yaml:"from_sub,omitempty"`
	ToCat       string        `json:"to_cat" yaml:"to_cat"`
	ToSub       string        `json:"to_sub,omitempty" yaml:"to_sub,omitempty"`
	Action      UpgradeAction `json:"action" yaml:"action"`
	ID          int64         `json:"id" yaml:"-"`
}

// Matches reports whether a classification falls under the mapping's source.
func (m UpgradeMapping) Matches(categoria, subcategoria string) bool {
	if categoria != m.FromCat {
		return false
	}
	return m.FromSub == "" || subcategoria == m.FromSub
}

// AuditEntry is an append-only record of an administrative or bulk operation.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
}
