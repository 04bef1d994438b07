package engine

import "github.com/Veraticus/toro/internal/cascade"

// Classifier defines the contract for rule-based movement categorization.
type Classifier interface {
	Classify(concept, detail string) cascade.Result
	Version() string
}
