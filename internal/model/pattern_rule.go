package model

import (
	"time"
)

// MatchType selects how a level-1 rule pattern is compared with a normalized concept.
type MatchType string

// Match type constants.
const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchPrefix   MatchType = "prefix"
	MatchSuffix   MatchType = "suffix"
)

// ParseMatchType accepts the canonical names and the Spanish aliases used by older rule files.
func ParseMatchType(s string) (MatchType, bool) {
	switch s {
	case "exact", "exacto":
		return MatchExact, true
	case "contains", "contiene":
		return MatchContains, true
	case "prefix", "comienza":
		return MatchPrefix, true
	case "suffix", "termina":
		return MatchSuffix, true
	default:
		return "", false
	}
}

// Rule is a level-1 classification rule keyed on the movement concept.
type Rule struct {
	ID             string    `json:"id"`
	Pattern        string    `json:"pattern"`
	MatchType      MatchType `json:"match_type"`
	Categoria      string    `json:"categoria"`
	Subcategoria   string    `json:"subcategoria"`
	Notes          string    `json:"notes,omitempty"`
	Priority       int       `json:"priority"`
	ConfidenceBase int       `json:"confidence_base"`
	Active         bool      `json:"active"`
}

// RefinementPattern is a level-2 pattern that narrows a level-1 subcategoria using the detail text.
type RefinementPattern struct {
	ID                  string   `json:"id"`
	BaseSubcategoria    string   `json:"base_subcategoria"`
	RefinedSubcategoria string   `json:"refined_subcategoria"`
	Notes               string   `json:"notes,omitempty"`
	Keywords            []string `json:"keywords"`
	Confidence          int      `json:"confidence"`
	Active              bool     `json:"active"`
}

// LearnedRule is a pattern remembered from a human correction.
type LearnedRule struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Pattern      string    `json:"pattern"`
	Categoria    string    `json:"categoria"`
	Subcategoria string    `json:"subcategoria"`
	ID           int64     `json:"id"`
	Confidence   int       `json:"confidence"`
	TimesUsed    int       `json:"times_used"`
}
