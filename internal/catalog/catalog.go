// Package catalog loads the versioned rule definition used by the cascade classifier.
//
// A Catalog is built once and never mutated. Picking up a new definition means
// building a new Catalog and a new classifier around it.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/normalize"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned for any missing or malformed rule definition.
var ErrInvalidCatalog = errors.New("invalid rule catalog")

// Defaults applied when a definition leaves a field out.
const (
	DefaultConfidenceBase   = 80
	DefaultRefineConfidence = 85
)

//go:embed default_rules.yaml
var defaultDefinition []byte

// Level1Rule is a level-1 rule together with its normalized pattern.
type Level1Rule struct {
	Normalized string
	model.Rule
}

// Level2Pattern is a refinement pattern together with its normalized keywords.
type Level2Pattern struct {
	Normalized []string
	model.RefinementPattern
}

// Catalog is an immutable, priority-ordered rule set.
type Catalog struct {
	refinements map[string][]Level2Pattern
	taxonomy    map[string][]string
	version     string
	rules       []Level1Rule
}

type document struct {
	Level1 struct {
		Rules []ruleDoc `yaml:"reglas"`
	} `yaml:"nivel1_concepto"`
	Level2 struct {
		Rules map[string]struct {
			Patterns []patternDoc `yaml:"patrones"`
		} `yaml:"reglas"`
	} `yaml:"nivel2_refinamiento"`
	Taxonomy map[string][]string `yaml:"categorias_disponibles"`
	Version  string              `yaml:"version"`
}

type ruleDoc struct {
	Priority       *int   `yaml:"prioridad"`
	ConfidenceBase *int   `yaml:"confianza_base"`
	Active         *bool  `yaml:"activo"`
	ID             string `yaml:"id"`
	Pattern        string `yaml:"patron"`
	MatchType      string `yaml:"tipo_match"`
	Categoria      string `yaml:"categoria"`
	Subcategoria   string `yaml:"subcategoria"`
	Notes          string `yaml:"notas"`
}

type patternDoc struct {
	Confidence          *int     `yaml:"confianza_refinada"`
	Active              *bool    `yaml:"activo"`
	ID                  string   `yaml:"id"`
	RefinedSubcategoria string   `yaml:"subcategoria_refinada"`
	Notes               string   `yaml:"notas"`
	Keywords            []string `yaml:"palabras_clave"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultDefinition)
}

// Load reads a rule definition from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidCatalog, path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse builds a catalog from a YAML rule definition.
func Parse(data []byte) (*Catalog, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidCatalog)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	doc.Version = strings.TrimSpace(doc.Version)
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidCatalog)
	}
	if len(doc.Level1.Rules) == 0 {
		return nil, fmt.Errorf("%w: no level-1 rules defined", ErrInvalidCatalog)
	}

	c := &Catalog{
		version:     doc.Version,
		refinements: make(map[string][]Level2Pattern, len(doc.Level2.Rules)),
		taxonomy:    make(map[string][]string, len(doc.Taxonomy)),
	}

	seen := make(map[string]bool)
	for i, rd := range doc.Level1.Rules {
		rule, err := buildRule(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: level-1 rule #%d: %v", ErrInvalidCatalog, i+1, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidCatalog, rule.ID)
		}
		seen[rule.ID] = true
		c.rules = append(c.rules, Level1Rule{Rule: rule, Normalized: normalize.Canonical(rule.Pattern)})
	}

	// Lower priority number wins; equal priorities keep load order.
	sort.SliceStable(c.rules, func(i, j int) bool {
		return c.rules[i].Priority < c.rules[j].Priority
	})

	for base, group := range doc.Level2.Rules {
		if strings.TrimSpace(base) == "" {
			return nil, fmt.Errorf("%w: refinement group with empty base subcategoria", ErrInvalidCatalog)
		}
		patterns := make([]Level2Pattern, 0, len(group.Patterns))
		for i, pd := range group.Patterns {
			p, err := buildPattern(base, pd)
			if err != nil {
				return nil, fmt.Errorf("%w: refinement %q #%d: %v", ErrInvalidCatalog, base, i+1, err)
			}
			if seen[p.ID] {
				return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidCatalog, p.ID)
			}
			seen[p.ID] = true
			patterns = append(patterns, p)
		}
		c.refinements[base] = patterns
	}

	for cat, subs := range doc.Taxonomy {
		c.taxonomy[cat] = append([]string(nil), subs...)
	}

	return c, nil
}

func buildRule(rd ruleDoc) (model.Rule, error) {
	if strings.TrimSpace(rd.ID) == "" {
		return model.Rule{}, errors.New("missing id")
	}
	if normalize.Canonical(rd.Pattern) == "" {
		return model.Rule{}, fmt.Errorf("rule %s: missing or empty patron", rd.ID)
	}
	if strings.TrimSpace(rd.Categoria) == "" || strings.TrimSpace(rd.Subcategoria) == "" {
		return model.Rule{}, fmt.Errorf("rule %s: missing categoria or subcategoria", rd.ID)
	}
	if rd.Priority == nil {
		return model.Rule{}, fmt.Errorf("rule %s: missing prioridad", rd.ID)
	}
	mt, ok := model.ParseMatchType(rd.MatchType)
	if !ok {
		return model.Rule{}, fmt.Errorf("rule %s: unknown tipo_match %q", rd.ID, rd.MatchType)
	}

	confidence := DefaultConfidenceBase
	if rd.ConfidenceBase != nil {
		confidence = *rd.ConfidenceBase
	}
	if confidence < 0 || confidence > 100 {
		return model.Rule{}, fmt.Errorf("rule %s: confianza_base %d outside [0,100]", rd.ID, confidence)
	}

	active := true
	if rd.Active != nil {
		active = *rd.Active
	}

	return model.Rule{
		ID:             rd.ID,
		Pattern:        rd.Pattern,
		MatchType:      mt,
		Categoria:      rd.Categoria,
		Subcategoria:   rd.Subcategoria,
		Priority:       *rd.Priority,
		ConfidenceBase: confidence,
		Active:         active,
		Notes:          rd.Notes,
	}, nil
}

func buildPattern(base string, pd patternDoc) (Level2Pattern, error) {
	if strings.TrimSpace(pd.ID) == "" {
		return Level2Pattern{}, errors.New("missing id")
	}
	if strings.TrimSpace(pd.RefinedSubcategoria) == "" {
		return Level2Pattern{}, fmt.Errorf("pattern %s: missing subcategoria_refinada", pd.ID)
	}

	keywords := make([]string, 0, len(pd.Keywords))
	for _, kw := range pd.Keywords {
		if n := normalizeKeyword(kw); strings.TrimSpace(n) != "" {
			keywords = append(keywords, n)
		}
	}
	if len(keywords) == 0 {
		return Level2Pattern{}, fmt.Errorf("pattern %s: no usable palabras_clave", pd.ID)
	}

	confidence := DefaultRefineConfidence
	if pd.Confidence != nil {
		confidence = *pd.Confidence
	}
	if confidence < 0 || confidence > 100 {
		return Level2Pattern{}, fmt.Errorf("pattern %s: confianza_refinada %d outside [0,100]", pd.ID, confidence)
	}

	active := true
	if pd.Active != nil {
		active = *pd.Active
	}

	return Level2Pattern{
		RefinementPattern: model.RefinementPattern{
			ID:                  pd.ID,
			BaseSubcategoria:    base,
			Keywords:            append([]string(nil), pd.Keywords...),
			RefinedSubcategoria: pd.RefinedSubcategoria,
			Confidence:          confidence,
			Active:              active,
			Notes:               pd.Notes,
		},
		Normalized: keywords,
	}, nil
}

// normalizeKeyword canonicalizes a keyword but keeps explicit edge spaces,
// which anchor the keyword to a word boundary of the padded detail.
func normalizeKeyword(kw string) string {
	n := normalize.Canonical(kw)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(kw, " ") {
		n = " " + n
	}
	if strings.HasSuffix(kw, " ") {
		n += " "
	}
	return n
}

// Version returns the definition's declared version.
func (c *Catalog) Version() string {
	return c.version
}

// Level1 returns a copy of the level-1 rules in evaluation order.
func (c *Catalog) Level1() []Level1Rule {
	out := make([]Level1Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Level2 returns a copy of every refinement group keyed by base subcategoria.
func (c *Catalog) Level2() map[string][]Level2Pattern {
	out := make(map[string][]Level2Pattern, len(c.refinements))
	for base, patterns := range c.refinements {
		out[base] = append([]Level2Pattern(nil), patterns...)
	}
	return out
}

// Rules returns the level-1 rules in evaluation order.
func (c *Catalog) Rules() []model.Rule {
	out := make([]model.Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Rule
	}
	return out
}

// Categorias returns the declared categories in alphabetical order.
func (c *Catalog) Categorias() []string {
	cats := make([]string, 0, len(c.taxonomy))
	for cat := range c.taxonomy {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// Subcategorias returns the subcategories declared for a category.
func (c *Catalog) Subcategorias(categoria string) []string {
	return append([]string(nil), c.taxonomy[categoria]...)
}

// Declares reports whether the taxonomy lists the category (and subcategory, when given).
// A catalog without a declared taxonomy accepts everything.
func (c *Catalog) Declares(categoria, subcategoria string) bool {
	if len(c.taxonomy) == 0 {
		return true
	}
	subs, ok := c.taxonomy[categoria]
	if !ok {
		return false
	}
	if subcategoria == "" {
		return true
	}
	for _, s := range subs {
		if s == subcategoria {
			return true
		}
	}
	return false
}
