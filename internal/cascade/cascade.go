// Package cascade implements the two-level rule classifier.
//
// Classification runs three stages and stops at the first that decides:
// the fixed strong pre-rules over concept and detail, the level-1 rules over the
// concept in priority order, and finally level-2 refinement of the level-1
// subcategoria using the detail.
package cascade

import (
	"github.com/Veraticus/toro/internal/catalog"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/normalize"
)

// Result is the outcome of classifying one concept/detail pair.
type Result struct {
	Categoria    string `json:"categoria"`
	Subcategoria string `json:"subcategoria"`
	Level1RuleID string `json:"level1_rule_id,omitempty"`
	Level2RuleID string `json:"level2_rule_id,omitempty"`
	Confidence   int    `json:"confidence"`
	WasRefined   bool   `json:"was_refined"`
}

// Matched reports whether anything other than the fallback produced the result.
func (r Result) Matched() bool {
	return r.Categoria != model.CategoryOtros
}

// Classifier applies a fixed catalog. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	refinements map[string][]catalog.Level2Pattern
	version     string
	rules       []catalog.Level1Rule
}

// New creates a classifier over the given catalog.
func New(cat *catalog.Catalog) *Classifier {
	return &Classifier{
		rules:       cat.Level1(),
		refinements: cat.Level2(),
		version:     cat.Version(),
	}
}

// Version returns the version of the catalog the classifier was built from.
func (c *Classifier) Version() string {
	return c.version
}

// Classify returns the classification for a concept and its optional detail.
// It never fails: text that matches nothing yields OTROS/Sin_Clasificar with confidence 0.
func (c *Classifier) Classify(concept, detail string) Result {
	conceptN := normalize.Canonical(concept)
	detailN := normalize.Canonical(detail)

	if res, ok := matchStrong(conceptN + " " + detailN); ok {
		return res
	}

	res, ok := c.matchLevel1(conceptN)
	if !ok {
		return Result{
			Categoria:    model.CategoryOtros,
			Subcategoria: model.SubcategoryUnknown,
		}
	}

	if detailN != "" {
		c.refine(&res, " "+detailN+" ")
	}

	return res
}

func (c *Classifier) matchLevel1(concept string) (Result, bool) {
	if concept == "" {
		return Result{}, false
	}
	for _, rule := range c.rules {
		if !rule.Active {
			continue
		}
		if matchesRule(concept, rule) {
			return Result{
				Categoria:    rule.Categoria,
				Subcategoria: rule.Subcategoria,
				Confidence:   rule.ConfidenceBase,
				Level1RuleID: rule.ID,
			}, true
		}
	}
	return Result{}, false
}

func (c *Classifier) refine(res *Result, padded string) {
	for _, pattern := range c.refinements[res.Subcategoria] {
		if !pattern.Active {
			continue
		}
		if matchesPattern(padded, pattern) {
			res.Subcategoria = pattern.RefinedSubcategoria
			res.Confidence = pattern.Confidence
			res.Level2RuleID = pattern.ID
			res.WasRefined = true
			return
		}
	}
}
