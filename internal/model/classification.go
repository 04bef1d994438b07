// Package model defines the core domain models used throughout the application.
package model

// Fuente records how a movement's classification was produced.
type Fuente string

// Provenance values. The set is closed; anything else read from storage is treated as unset.
const (
	FuenteUnset       Fuente = ""
	FuenteManual      Fuente = "manual"
	FuenteLearnedRule Fuente = "regla_aprendida"
	FuenteCascade     Fuente = "cascada"
	FuenteUpgrade     Fuente = "upgrade_catalogo"
	FuenteSinFuente   Fuente = "sin_fuente"
)

// ParseFuente maps a stored provenance value onto the closed enum.
func ParseFuente(s string) Fuente {
	switch f := Fuente(s); f {
	case FuenteManual, FuenteLearnedRule, FuenteCascade, FuenteUpgrade, FuenteSinFuente:
		return f
	default:
		return FuenteUnset
	}
}

// IsValid reports whether f is one of the known provenance values.
func (f Fuente) IsValid() bool {
	return ParseFuente(string(f)) == f
}

// String returns the stored representation, or "unset".
func (f Fuente) String() string {
	if f == FuenteUnset {
		return "unset"
	}
	return string(f)
}
