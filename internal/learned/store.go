package learned

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/normalize"
	"github.com/Veraticus/toro/internal/service"
)

// ErrEmptyPattern is returned when a description has no matchable words.
var ErrEmptyPattern = errors.New("pattern is empty after normalization")

// Store holds the learned rules for one unit of work, usually a transaction.
// Rules touched by Apply are written back by Flush.
type Store struct {
	storage service.Storage
	dirty   map[int64]struct{}
	rules   []*model.LearnedRule
}

// NewStore creates an empty store over storage. Call Load before Lookup.
func NewStore(storage service.Storage) *Store {
	return &Store{
		storage: storage,
		dirty:   make(map[int64]struct{}),
	}
}

// Open creates a store and loads every learned rule.
func Open(ctx context.Context, storage service.Storage) (*Store, error) {
	s := NewStore(storage)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the cached rules with the stored ones. Pending changes are discarded.
func (s *Store) Load(ctx context.Context) error {
	rules, err := s.storage.GetLearnedRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load learned rules: %w", err)
	}

	s.rules = make([]*model.LearnedRule, len(rules))
	for i := range rules {
		s.rules[i] = &rules[i]
	}
	s.dirty = make(map[int64]struct{})
	s.reorder()
	return nil
}

// Len returns the number of cached rules.
func (s *Store) Len() int {
	return len(s.rules)
}

// ObtainOrCreate records a correction for pattern. An existing rule takes the new
// classification and is reinforced; otherwise a rule is created at InitialConfidence.
// The pattern is canonicalized first, as Lookup compares canonical text.
// The result is persisted immediately.
func (s *Store) ObtainOrCreate(ctx context.Context, pattern, categoria, subcategoria string) (*model.LearnedRule, error) {
	pattern = normalize.Canonical(pattern)
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	rule, err := s.storage.GetLearnedRule(ctx, pattern)
	switch {
	case err == nil:
		rule.Categoria = categoria
		rule.Subcategoria = subcategoria
		rule.TimesUsed++
		rule.Confidence = bump(rule.Confidence, rememberStep)
	case errors.Is(err, common.ErrNotFound):
		rule = &model.LearnedRule{
			Pattern:      pattern,
			Categoria:    categoria,
			Subcategoria: subcategoria,
			Confidence:   InitialConfidence,
			TimesUsed:    1,
		}
	default:
		return nil, fmt.Errorf("failed to get learned rule: %w", err)
	}

	if err := s.storage.SaveLearnedRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save learned rule: %w", err)
	}

	s.replace(rule)
	return rule, nil
}

// Lookup returns the first rule, in lookup order, whose pattern occurs in the
// canonical description.
func (s *Store) Lookup(desc string) (*model.LearnedRule, bool) {
	canonical := normalize.Canonical(desc)
	if canonical == "" {
		return nil, false
	}
	for _, rule := range s.rules {
		if rule.Pattern != "" && strings.Contains(canonical, rule.Pattern) {
			return rule, true
		}
	}
	return nil, false
}

// Apply classifies m with rule and reinforces the rule. Movement confidence never decreases.
func (s *Store) Apply(rule *model.LearnedRule, m *model.Movement) {
	m.Categoria = rule.Categoria
	m.Subcategoria = rule.Subcategoria
	m.Confianza = model.ClampConfidence(max(m.Confianza, rule.Confidence))
	m.Fuente = model.FuenteLearnedRule

	rule.TimesUsed++
	rule.Confidence = bump(rule.Confidence, applyStep)
	s.dirty[rule.ID] = struct{}{}
	s.reorder()
}

// Dirty returns the number of rules with unsaved changes.
func (s *Store) Dirty() int {
	return len(s.dirty)
}

// Flush persists every rule changed by Apply.
func (s *Store) Flush(ctx context.Context) error {
	ids := make([]int64, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rule := s.find(id)
		if rule == nil {
			continue
		}
		if err := s.storage.SaveLearnedRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to flush learned rule %q: %w", rule.Pattern, err)
		}
		delete(s.dirty, id)
	}
	return nil
}

func (s *Store) find(id int64) *model.LearnedRule {
	for _, rule := range s.rules {
		if rule.ID == id {
			return rule
		}
	}
	return nil
}

func (s *Store) replace(rule *model.LearnedRule) {
	if s.rules == nil {
		return
	}
	if existing := s.find(rule.ID); existing != nil {
		*existing = *rule
	} else {
		s.rules = append(s.rules, rule)
	}
	s.reorder()
}

// reorder keeps lookup order: confidence desc, times used desc, id asc.
func (s *Store) reorder() {
	sort.SliceStable(s.rules, func(i, j int) bool {
		a, b := s.rules[i], s.rules[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.TimesUsed != b.TimesUsed {
			return a.TimesUsed > b.TimesUsed
		}
		return a.ID < b.ID
	})
}
