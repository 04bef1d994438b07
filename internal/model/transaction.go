package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category names the classifier falls back to.
const (
	CategoryOtros      = "OTROS"
	SubcategoryUnknown = "Sin_Clasificar"
	// CategoryLegacyUnset is written by older imports for movements that were never categorized.
	CategoryLegacyUnset = "SIN_CATEGORIA"
)

// Movement is a single bank movement as consolidated by the ingestion side.
type Movement struct {
	Fecha        time.Time // Calendar date; storage keeps the day in Fecha's zone and drops the time
	BatchID      *int64
	Descripcion  string // Concept line as printed by the bank
	Detalle      string // Optional detail line; the description stands in when empty
	Categoria    string
	Subcategoria string
	Fuente       Fuente
	Monto        decimal.Decimal
	ID           int64
	Confianza    int
}

// DetailText returns the text used for level-2 refinement.
func (m *Movement) DetailText() string {
	if m.Detalle != "" {
		return m.Detalle
	}
	return m.Descripcion
}

// IsManual reports whether a human classified the movement.
func (m *Movement) IsManual() bool {
	return m.Fuente == FuenteManual
}

// IsUncategorized reports whether the movement carries no usable category.
func (m *Movement) IsUncategorized() bool {
	return m.Categoria == "" || m.Categoria == CategoryLegacyUnset
}

// SetClassification writes a classification onto the movement, clamping confidence to [0,100].
func (m *Movement) SetClassification(categoria, subcategoria string, confianza int, fuente Fuente) {
	m.Categoria = categoria
	m.Subcategoria = subcategoria
	m.Confianza = ClampConfidence(confianza)
	m.Fuente = fuente
}

// ClampConfidence bounds a confidence score to [0,100].
func ClampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
