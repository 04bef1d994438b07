package engine

import (
	"math"
	"sort"
)

// Limits for the ranked lists in a Summary.
const (
	topCategorias    = 10
	topSubcategorias = 15
)

// Count is one entry of a ranked tally.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Porcentajes are shares of Procesados, rounded to two decimals.
type Porcentajes struct {
	Categorizados float64 `json:"categorizados"`
	Refinados     float64 `json:"refinados"`
}

// Summary reports the outcome of a classification run. Procesados includes
// preserved manual movements. Subcategoria keys are "CATEGORIA:Subcategoria".
type Summary struct {
	RunID                      string      `json:"run_id"`
	CategoriasDistintas        []string    `json:"categorias_distintas"`
	TopCategorias              []Count     `json:"top_categorias"`
	TopSubcategorias           []Count     `json:"top_subcategorias"`
	Porcentajes                Porcentajes `json:"porcentajes"`
	Procesados                 int         `json:"procesados"`
	Categorizados              int         `json:"categorizados"`
	SinMatch                   int         `json:"sin_match"`
	RefinadosNivel2            int         `json:"refinados_nivel2"`
	AplicadosPorReglaAprendida int         `json:"aplicados_regla_aprendida"`
	Preservados                int         `json:"preservados"`
	DryRun                     bool        `json:"dry_run"`
}

type tally struct {
	porCategoria            map[string]int
	porSubcategoria         map[string]int
	procesados              int
	categorizados           int
	sinMatch                int
	refinados               int
	aplicadosReglaAprendida int
	preservados             int
}

func newTally() *tally {
	return &tally{
		porCategoria:    make(map[string]int),
		porSubcategoria: make(map[string]int),
	}
}

func (t *tally) count(categoria, subcategoria string) {
	t.porCategoria[categoria]++
	t.porSubcategoria[categoria+":"+subcategoria]++
}

func (t *tally) summary() *Summary {
	distintas := make([]string, 0, len(t.porCategoria))
	for cat := range t.porCategoria {
		distintas = append(distintas, cat)
	}
	sort.Strings(distintas)

	return &Summary{
		Procesados:                 t.procesados,
		Categorizados:              t.categorizados,
		SinMatch:                   t.sinMatch,
		RefinadosNivel2:            t.refinados,
		AplicadosPorReglaAprendida: t.aplicadosReglaAprendida,
		Preservados:                t.preservados,
		CategoriasDistintas:        distintas,
		TopCategorias:              topN(t.porCategoria, topCategorias),
		TopSubcategorias:           topN(t.porSubcategoria, topSubcategorias),
		Porcentajes: Porcentajes{
			Categorizados: percent(t.categorizados, t.procesados),
			Refinados:     percent(t.refinados, t.procesados),
		},
	}
}

// topN ranks counts descending with ties broken by key.
func topN(counts map[string]int, n int) []Count {
	ranked := make([]Count, 0, len(counts))
	for key, c := range counts {
		ranked = append(ranked, Count{Key: key, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
