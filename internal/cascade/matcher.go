package cascade

import (
	"strings"

	"github.com/Veraticus/toro/internal/catalog"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/normalize"
)

// Strong pre-rule identifiers reported in Result.Level1RuleID.
const (
	StrongDBCRRuleID = "STRONG-DBCR"
	StrongIVARuleID  = "STRONG-IVA"
)

// Token variants for the debits and credits tax. Matching is on whole words only,
// so "CREDITO DEBIN" or "CREDENCIAL DEBERES" never trip the rule.
var (
	debitTokens  = []string{"DEBITOS", "DEBITO", "DEB", "DB"}
	creditTokens = []string{"CREDITOS", "CREDITO", "CRED", "CR"}
)

// matchStrong evaluates the fixed pre-rules against the canonical concept+detail.
func matchStrong(text string) (Result, bool) {
	tokens := normalize.Tokens(text)

	if hasAny(tokens, debitTokens) && hasAny(tokens, creditTokens) {
		return Result{
			Categoria:    "IMPUESTOS",
			Subcategoria: "Impuestos-DébitosYCréditos",
			Confidence:   90,
			Level1RuleID: StrongDBCRRuleID,
		}, true
	}

	if _, ok := tokens["IVA"]; ok {
		return Result{
			Categoria:    "IMPUESTOS",
			Subcategoria: "Impuestos-IVA",
			Confidence:   90,
			Level1RuleID: StrongIVARuleID,
		}, true
	}

	return Result{}, false
}

func hasAny(tokens map[string]struct{}, variants []string) bool {
	for _, v := range variants {
		if _, ok := tokens[v]; ok {
			return true
		}
	}
	return false
}

// matchesRule applies a level-1 rule's match type to a canonical concept.
func matchesRule(concept string, rule catalog.Level1Rule) bool {
	switch rule.MatchType {
	case model.MatchExact:
		return concept == rule.Normalized
	case model.MatchContains:
		return strings.Contains(concept, rule.Normalized)
	case model.MatchPrefix:
		return strings.HasPrefix(concept, rule.Normalized)
	case model.MatchSuffix:
		return strings.HasSuffix(concept, rule.Normalized)
	}
	return false
}

// matchesPattern reports whether any keyword occurs in the padded canonical detail.
func matchesPattern(padded string, pattern catalog.Level2Pattern) bool {
	for _, kw := range pattern.Normalized {
		if strings.Contains(padded, kw) {
			return true
		}
	}
	return false
}
