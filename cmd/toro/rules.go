package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/learned"
	"github.com/Veraticus/toro/internal/normalize"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage learned rules and inspect the rule catalog",
		Long: `Learned rules are patterns remembered from human corrections. They are
consulted before the rule catalog and gain confidence every time they apply.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesRememberCmd())
	cmd.AddCommand(rulesForgetCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesCatalogCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned rules by confidence and use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := learned.NewAdmin(store, appConfig.Learned.PatternWords).List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list learned rules: %w", err)
			}

			if len(rules) == 0 {
				cmd.Println(cli.FormatInfo("No learned rules yet"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, "ID\tPattern\tClasificación\tConf\tUsos")
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, separator(4, 40, 36, 4, 4))

			for _, r := range rules {
				//nolint:forbidigo // User-facing output
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n",
					r.ID,
					truncate(r.Pattern, 40),
					truncate(label(r.Categoria, r.Subcategoria), 36),
					r.Confidence,
					r.TimesUsed,
				)
			}

			return w.Flush()
		},
	}
}

func rulesRememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember <descripcion> <categoria> [subcategoria]",
		Short: "Teach a learned rule from a description",
		Long: `Derive a pattern from the first words of a movement description and
remember the classification for it. Remembering an existing pattern raises its
confidence by 10.`,
		Example: `  toro rules remember "Transferencia a ACME SRL factura 0001" EGRESOS Proveedores`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var subcategoria string
			if len(args) == 3 {
				subcategoria = args[2]
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			admin := learned.NewAdmin(store, appConfig.Learned.PatternWords)
			rule, err := admin.Remember(ctx, actorFlag(cmd), args[0], args[1], subcategoria)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Remembered %q as %s (confianza %d, used %d times)",
				rule.Pattern, label(rule.Categoria, rule.Subcategoria), rule.Confidence, rule.TimesUsed)))
			return nil
		},
	}

	cmd.Flags().String("as", "", "actor recorded in the audit log")
	return cmd
}

func rulesForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <pattern>",
		Short: "Delete a learned rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			admin := learned.NewAdmin(store, appConfig.Learned.PatternWords)
			if err := admin.Forget(ctx, actorFlag(cmd), args[0]); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Forgot %q", normalize.Canonical(args[0]))))
			return nil
		},
	}

	cmd.Flags().String("as", "", "actor recorded in the audit log")
	return cmd
}

func rulesTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <concepto> [detalle]",
		Short: "Show how the rule catalog classifies a concept",
		Long: `Run the rule catalog over a concept and optional detail and print which
rules decided. Learned rules are not consulted.`,
		Example: `  toro rules test "Compra VISA Débito" "EPEC CORDOBA"`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := loadClassifier()
			if err != nil {
				return err
			}

			detail := args[0]
			if len(args) == 2 {
				detail = args[1]
			}
			res := classifier.Classify(args[0], detail)

			var b strings.Builder
			fmt.Fprintf(&b, "Concepto:      %s\n", normalize.Canonical(args[0]))
			fmt.Fprintf(&b, "Detalle:       %s\n", normalize.Canonical(detail))
			fmt.Fprintf(&b, "Regla nivel 1: %s\n", orDash(res.Level1RuleID))
			fmt.Fprintf(&b, "Regla nivel 2: %s\n", orDash(res.Level2RuleID))
			fmt.Fprintf(&b, "Resultado:     %s\n", label(res.Categoria, res.Subcategoria))
			fmt.Fprintf(&b, "Confianza:     %s", cli.FormatConfidence(res.Confidence))

			title := "Catalog " + classifier.Version()
			cmd.Println(cli.RenderBox(title, b.String()))
			if !res.Matched() {
				cmd.Println(cli.FormatWarning("No rule matched"))
			}
			return nil
		},
	}
}

func rulesCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the level-1 rules of the rule catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			if taxonomy, _ := cmd.Flags().GetBool("taxonomy"); taxonomy {
				for _, c := range cat.Categorias() {
					cmd.Println(cli.FormatTitle(c))
					for _, sub := range cat.Subcategorias(c) {
						cmd.Printf("  %s\n", sub)
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, "ID\tPrio\tTipo\tPattern\tClasificación\tConf\tActiva")
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, separator(10, 4, 12, 30, 36, 4, 6))

			for _, r := range cat.Rules() {
				//nolint:forbidigo // User-facing output
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%t\n",
					r.ID,
					r.Priority,
					r.MatchType,
					truncate(r.Pattern, 30),
					truncate(label(r.Categoria, r.Subcategoria), 36),
					r.ConfidenceBase,
					r.Active,
				)
			}

			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			cmd.Printf("\nCatalog version %s\n", cat.Version())
			return nil
		},
	}

	cmd.Flags().Bool("taxonomy", false, "list declared categories and subcategories instead")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
