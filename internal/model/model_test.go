package model

import (
	"testing"
)

func TestParseFuente(t *testing.T) {
	tests := []struct {
		input string
		want  Fuente
	}{
		{"manual", FuenteManual},
		{"regla_aprendida", FuenteLearnedRule},
		{"cascada", FuenteCascade},
		{"upgrade_catalogo", FuenteUpgrade},
		{"sin_fuente", FuenteSinFuente},
		{"", FuenteUnset},
		{"MANUAL", FuenteUnset},
		{"llm", FuenteUnset},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFuente(tt.input); got != tt.want {
				t.Errorf("ParseFuente(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFuente_IsValid(t *testing.T) {
	if !FuenteUnset.IsValid() {
		t.Error("unset provenance should be valid")
	}
	if !FuenteCascade.IsValid() {
		t.Error("cascada should be valid")
	}
	if Fuente("heuristica").IsValid() {
		t.Error("unknown provenance should be invalid")
	}
	if got := FuenteUnset.String(); got != "unset" {
		t.Errorf("FuenteUnset.String() = %q, want unset", got)
	}
}

func TestParseMatchType(t *testing.T) {
	tests := []struct {
		input  string
		want   MatchType
		wantOK bool
	}{
		{"exact", MatchExact, true},
		{"exacto", MatchExact, true},
		{"contiene", MatchContains, true},
		{"prefix", MatchPrefix, true},
		{"comienza", MatchPrefix, true},
		{"termina", MatchSuffix, true},
		{"regex", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMatchType(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseMatchType(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{-5, 0},
		{0, 0},
		{85, 85},
		{100, 100},
		{140, 100},
	}

	for _, tt := range tests {
		if got := ClampConfidence(tt.input); got != tt.want {
			t.Errorf("ClampConfidence(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestMovement_Classification(t *testing.T) {
	m := &Movement{Descripcion: "Compra VISA Débito"}

	if got := m.DetailText(); got != "Compra VISA Débito" {
		t.Errorf("DetailText() without detalle = %q, want the description", got)
	}
	m.Detalle = "EPEC CORDOBA"
	if got := m.DetailText(); got != "EPEC CORDOBA" {
		t.Errorf("DetailText() = %q, want EPEC CORDOBA", got)
	}

	if !m.IsUncategorized() {
		t.Error("new movement should be uncategorized")
	}
	m.Categoria = CategoryLegacyUnset
	if !m.IsUncategorized() {
		t.Error("SIN_CATEGORIA should count as uncategorized")
	}

	m.SetClassification("EGRESOS", "Gastos_Compras", 120, FuenteManual)
	if m.Confianza != 100 {
		t.Errorf("Confianza = %d, want clamped 100", m.Confianza)
	}
	if !m.IsManual() || m.IsUncategorized() {
		t.Errorf("unexpected state after SetClassification: %+v", m)
	}
}

func TestUpgradeMapping_Matches(t *testing.T) {
	wildcard := UpgradeMapping{FromCat: "EGRESOS"}
	exact := UpgradeMapping{FromCat: "EGRESOS", FromSub: "Servicios"}

	tests := []struct {
		name    string
		mapping UpgradeMapping
		cat     string
		sub     string
		want    bool
	}{
		{"wildcard any sub", wildcard, "EGRESOS", "Gastos_Compras", true},
		{"wildcard empty sub", wildcard, "EGRESOS", "", true},
		{"wildcard other cat", wildcard, "INGRESOS", "Servicios", false},
		{"exact hit", exact, "EGRESOS", "Servicios", true},
		{"exact other sub", exact, "EGRESOS", "Servicios_Gas", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mapping.Matches(tt.cat, tt.sub); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.cat, tt.sub, got, tt.want)
			}
		})
	}

	for _, a := range []UpgradeAction{ActionRename, ActionMove, ActionDeactivate} {
		if !a.IsValid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if UpgradeAction("rename").IsValid() {
		t.Error("actions are case sensitive")
	}
}
