// Package learned keeps the rules derived from human corrections. Rules are
// consulted before the cascade and reinforce themselves each time they apply.
package learned

import "github.com/Veraticus/toro/internal/normalize"

// DefaultPatternWords is how many leading words of a description form a pattern.
const DefaultPatternWords = 5

// Confidence bookkeeping.
const (
	InitialConfidence = 50
	rememberStep      = 10
	applyStep         = 1
	maxConfidence     = 100
)

// DerivePattern returns the first n canonical words of desc.
// A non-positive n selects DefaultPatternWords.
func DerivePattern(desc string, n int) string {
	if n <= 0 {
		n = DefaultPatternWords
	}
	return normalize.Words(desc, n)
}

func bump(confidence, step int) int {
	return min(maxConfidence, confidence+step)
}
