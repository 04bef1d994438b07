package cascade

import (
	"testing"

	"github.com/Veraticus/toro/internal/catalog"
	"github.com/Veraticus/toro/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return New(cat)
}

func TestClassify_DefaultCatalog(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name    string
		concept string
		detail  string
		want    Result
	}{
		{
			name:    "strong IVA beats everything",
			concept: "PAGO IVA MENSUAL",
			want: Result{
				Categoria:    "IMPUESTOS",
				Subcategoria: "Impuestos-IVA",
				Confidence:   90,
				Level1RuleID: StrongIVARuleID,
			},
		},
		{
			name:    "strong IVA with punctuation",
			concept: "Pago de servicios",
			detail:  "IVA:21%",
			want: Result{
				Categoria:    "IMPUESTOS",
				Subcategoria: "Impuestos-IVA",
				Confidence:   90,
				Level1RuleID: StrongIVARuleID,
			},
		},
		{
			name:    "strong debits and credits full words",
			concept: "Impuesto Débitos y Créditos",
			want: Result{
				Categoria:    "IMPUESTOS",
				Subcategoria: "Impuestos-DébitosYCréditos",
				Confidence:   90,
				Level1RuleID: StrongDBCRRuleID,
			},
		},
		{
			name:    "strong debits and credits short codes",
			concept: "IMP LEY 25413",
			detail:  "DB/CR",
			want: Result{
				Categoria:    "IMPUESTOS",
				Subcategoria: "Impuestos-DébitosYCréditos",
				Confidence:   90,
				Level1RuleID: StrongDBCRRuleID,
			},
		},
		{
			name:    "refinement scenario",
			concept: "Compra VISA Débito",
			detail:  "EPEC CORDOBA",
			want: Result{
				Categoria:    "EGRESOS",
				Subcategoria: "Servicios_Electricidad",
				Confidence:   95,
				Level1RuleID: "GAS-001",
				Level2RuleID: "REF-GAS-002",
				WasRefined:   true,
			},
		},
		{
			name:    "level-1 only when detail adds nothing",
			concept: "Compra VISA Débito",
			detail:  "KIOSCO EL TURCO",
			want: Result{
				Categoria:    "EGRESOS",
				Subcategoria: "Gastos_Compras",
				Confidence:   70,
				Level1RuleID: "GAS-001",
			},
		},
		{
			name:    "credito debin is not the debits and credits tax",
			concept: "Credito DEBIN",
			want: Result{
				Categoria:    "INGRESOS",
				Subcategoria: "DEBIN_Afiliados",
				Confidence:   95,
				Level1RuleID: "ING-002",
			},
		},
		{
			name:    "edge anchored keyword",
			concept: "Transferencia por CBU",
			detail:  "DR. JUAN PEREZ",
			want: Result{
				Categoria:    "EGRESOS",
				Subcategoria: "Prestadores_Profesionales",
				Confidence:   85,
				Level1RuleID: "EGR-001",
				Level2RuleID: "REF-EGR-002",
				WasRefined:   true,
			},
		},
		{
			name:    "edge anchored keyword does not match inside a word",
			concept: "Transferencia por CBU",
			detail:  "ANDRES GOMEZ",
			want: Result{
				Categoria:    "EGRESOS",
				Subcategoria: "Transferencias",
				Confidence:   75,
				Level1RuleID: "EGR-001",
			},
		},
		{
			name:    "prefix match type",
			concept: "Acreditación de haberes",
			want: Result{
				Categoria:    "INGRESOS",
				Subcategoria: "Acreditaciones",
				Confidence:   80,
				Level1RuleID: "ING-004",
			},
		},
		{
			name:    "unmatched text",
			concept: "xyz sin relacion",
			want: Result{
				Categoria:    model.CategoryOtros,
				Subcategoria: model.SubcategoryUnknown,
			},
		},
		{
			name:    "empty text",
			concept: "",
			want: Result{
				Categoria:    model.CategoryOtros,
				Subcategoria: model.SubcategoryUnknown,
			},
		},
		{
			name:    "all noise",
			concept: "*** --- ###",
			detail:  "...",
			want: Result{
				Categoria:    model.CategoryOtros,
				Subcategoria: model.SubcategoryUnknown,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.concept, tt.detail)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := defaultClassifier(t)

	inputs := [][2]string{
		{"Compra VISA Débito", "EPEC CORDOBA"},
		{"Credito por transferencia", "OSDE"},
		{"nada que ver", ""},
	}
	for _, in := range inputs {
		first := c.Classify(in[0], in[1])
		second := c.Classify(in[0], in[1])
		assert.Equal(t, first, second)
	}
}

func TestClassify_PriorityIndependentOfLoadOrder(t *testing.T) {
	forward := `
version: "t"
nivel1_concepto:
  reglas:
    - {id: WIDE, patron: pago, tipo_match: contains, categoria: EGRESOS, subcategoria: Pagos, prioridad: 50}
    - {id: NARROW, patron: pago de luz, tipo_match: contains, categoria: EGRESOS, subcategoria: Luz, prioridad: 5}
`
	reversed := `
version: "t"
nivel1_concepto:
  reglas:
    - {id: NARROW, patron: pago de luz, tipo_match: contains, categoria: EGRESOS, subcategoria: Luz, prioridad: 5}
    - {id: WIDE, patron: pago, tipo_match: contains, categoria: EGRESOS, subcategoria: Pagos, prioridad: 50}
`
	for _, def := range []string{forward, reversed} {
		cat, err := catalog.Parse([]byte(def))
		require.NoError(t, err)

		got := New(cat).Classify("Pago de luz enero", "")
		assert.Equal(t, "NARROW", got.Level1RuleID)
		assert.Equal(t, "Luz", got.Subcategoria)
	}
}

func TestClassify_InactiveRulesSkipped(t *testing.T) {
	def := `
version: "t"
nivel1_concepto:
  reglas:
    - {id: OFF, patron: pago, tipo_match: contains, categoria: EGRESOS, subcategoria: Pagos, prioridad: 1, activo: false}
    - {id: ON, patron: pago, tipo_match: contains, categoria: EGRESOS, subcategoria: Otros_Pagos, prioridad: 2}
nivel2_refinamiento:
  reglas:
    Otros_Pagos:
      patrones:
        - {id: REF-OFF, palabras_clave: [gas], subcategoria_refinada: Gas, activo: false}
        - {id: REF-ON, palabras_clave: [gas], subcategoria_refinada: Gas_Natural, confianza_refinada: 92}
`
	cat, err := catalog.Parse([]byte(def))
	require.NoError(t, err)

	got := New(cat).Classify("PAGO", "ECOGAS")
	assert.Equal(t, "ON", got.Level1RuleID)
	assert.Equal(t, "REF-ON", got.Level2RuleID)
	assert.Equal(t, "Gas_Natural", got.Subcategoria)
	assert.Equal(t, 92, got.Confidence)
}

func TestClassify_MatchTypes(t *testing.T) {
	def := `
version: "t"
nivel1_concepto:
  reglas:
    - {id: EXACT, patron: haberes, tipo_match: exacto, categoria: INGRESOS, subcategoria: Sueldos, prioridad: 1}
    - {id: SUFFIX, patron: mensual, tipo_match: termina, categoria: EGRESOS, subcategoria: Mensuales, prioridad: 2}
`
	cat, err := catalog.Parse([]byte(def))
	require.NoError(t, err)
	c := New(cat)

	assert.Equal(t, "EXACT", c.Classify("Haberes", "").Level1RuleID)
	assert.Equal(t, "", c.Classify("Haberes enero", "").Level1RuleID)
	assert.Equal(t, "SUFFIX", c.Classify("Cuota mensual", "").Level1RuleID)
	assert.Equal(t, "", c.Classify("Mensual cuota", "").Level1RuleID)
}

func TestClassify_DebitCreditBoundaries(t *testing.T) {
	c := defaultClassifier(t)

	// Substrings of unrelated words must not count as debit or credit tokens.
	for _, concept := range []string{"CREDENCIAL DEBERES", "Credito DEBIN", "DBX CRX", "DEBITO AUTOMATICO"} {
		got := c.Classify(concept, "")
		assert.NotEqual(t, StrongDBCRRuleID, got.Level1RuleID, concept)
	}

	tests := []struct {
		concept string
		detail  string
	}{
		{"DEB", "CRED"},
		{"IMPUESTO DEBITO Y CREDITO", ""},
		{"Impuesto Débito y Crédito", ""},
		{"IMP LEY 25413 DEBITO", "CREDITO"},
		{"Impuesto Debitos y Creditos/DB", ""},
	}
	for _, tt := range tests {
		got := c.Classify(tt.concept, tt.detail)
		assert.Equal(t, StrongDBCRRuleID, got.Level1RuleID, tt.concept)
		assert.Equal(t, "IMPUESTOS", got.Categoria, tt.concept)
		assert.Equal(t, 90, got.Confidence, tt.concept)
	}
}

func TestResult_Matched(t *testing.T) {
	assert.False(t, Result{Categoria: model.CategoryOtros}.Matched())
	assert.True(t, Result{Categoria: "EGRESOS"}.Matched())
}
