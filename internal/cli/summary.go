package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/toro/internal/engine"
	"github.com/Veraticus/toro/internal/upgrade"
)

// RenderSummary formats the outcome of a classification run.
func RenderSummary(s *engine.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  • Procesados: %d\n", s.Procesados)
	fmt.Fprintf(&b, "  • Categorizados: %d (%.2f%%)\n", s.Categorizados, s.Porcentajes.Categorizados)
	fmt.Fprintf(&b, "  • Refinados nivel 2: %d (%.2f%%)\n", s.RefinadosNivel2, s.Porcentajes.Refinados)
	fmt.Fprintf(&b, "  • Por regla aprendida: %d\n", s.AplicadosPorReglaAprendida)
	fmt.Fprintf(&b, "  • Sin match: %d\n", s.SinMatch)
	fmt.Fprintf(&b, "  • %s Manuales preservados: %d\n", LockIcon, s.Preservados)

	if len(s.TopCategorias) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Top categorías") + "\n")
		for _, c := range s.TopCategorias {
			fmt.Fprintf(&b, "  %-32s %5d\n", c.Key, c.Count)
		}
	}
	if len(s.TopSubcategorias) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Top subcategorías") + "\n")
		for _, c := range s.TopSubcategorias {
			fmt.Fprintf(&b, "  %-48s %5d\n", c.Key, c.Count)
		}
	}

	title := ChartIcon + " Classification Complete"
	if s.DryRun {
		title += SubtleStyle.Render(" (dry run, nothing saved)")
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderSimulation formats the projected effect of an upgrade.
func RenderSimulation(sim *upgrade.Simulation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total afectados: %d\n", sim.Total)
	for _, impact := range sim.Impacts {
		mp := impact.Mapping
		fmt.Fprintf(&b, "  %5d  %-10s %s → %s\n",
			impact.Affected, mp.Action, classLabel(mp.FromCat, mp.FromSub), classLabel(mp.ToCat, mp.ToSub))
	}

	return RenderBox(fmt.Sprintf("Upgrade %s → %s (simulation)", sim.From, sim.To), strings.TrimRight(b.String(), "\n"))
}

// RenderUpgrade formats an applied upgrade.
func RenderUpgrade(from, to string, res *upgrade.ApplyResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  • Procesados: %d\n", res.Procesados)
	fmt.Fprintf(&b, "  • Actualizados: %d\n", res.Actualizados)
	fmt.Fprintf(&b, "  • %s Manuales preservados: %d\n", LockIcon, res.Preservados)
	fmt.Fprintf(&b, "  • Audit: %s", res.AuditID)
	if res.Snapshot != nil {
		fmt.Fprintf(&b, "\n  • Snapshot: %s", res.Snapshot.ID)
	}

	return RenderBox(fmt.Sprintf("Upgrade %s → %s applied", from, to), b.String())
}

func classLabel(categoria, subcategoria string) string {
	if subcategoria == "" {
		return categoria + ":*"
	}
	return categoria + ":" + subcategoria
}
