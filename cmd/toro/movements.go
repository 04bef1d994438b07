package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Veraticus/toro/internal/cascade"
	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/engine"
	"github.com/spf13/cobra"
)

func movementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movements",
		Short: "Inspect and correct movements",
		Long:  `List stored movements and correct their classification by hand.`,
	}

	cmd.AddCommand(movementsListCmd())
	cmd.AddCommand(movementsSetCmd())

	return cmd
}

func movementsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List movements",
		RunE:  runMovementsList,
	}

	addFilterFlags(cmd)
	cmd.Flags().Bool("uncategorized", false, "only movements without a category")

	return cmd
}

func runMovementsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	filter := filterFromFlags(cmd)
	filter.OnlyUncategorized, _ = cmd.Flags().GetBool("uncategorized")

	movements, err := store.GetMovements(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list movements: %w", err)
	}

	if len(movements) == 0 {
		cmd.Println(cli.FormatInfo("No movements found"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	//nolint:forbidigo // User-facing output
	fmt.Fprintln(w, "ID\tFecha\tDescripción\tMonto\tClasificación\tConf\tFuente")
	//nolint:forbidigo // User-facing output
	fmt.Fprintln(w, separator(6, 10, 36, 12, 36, 4, 16))

	for _, m := range movements {
		//nolint:forbidigo // User-facing output
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID,
			m.Fecha.Format("2006-01-02"),
			truncate(m.Descripcion, 36),
			m.Monto.StringFixed(2),
			truncate(label(m.Categoria, m.Subcategoria), 36),
			m.Confianza,
			m.Fuente,
		)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	cmd.Printf("\n%d movements\n", len(movements))
	return nil
}

func movementsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <categoria> [subcategoria]",
		Short: "Classify a movement by hand",
		Long: `Set the classification of a movement with confianza 100 and fuente manual.
Manual classifications are never changed by later runs or upgrades.

With --remember the movement's description also teaches a learned rule, so
similar movements follow the correction on the next classification run.`,
		Example: `  toro movements set 1532 EGRESOS Servicios_Electricidad --remember`,
		Args:    cobra.RangeArgs(2, 3),
		RunE:    runMovementsSet,
	}

	cmd.Flags().Bool("remember", false, "learn a rule from the movement's description")
	cmd.Flags().String("as", "", "actor recorded in the audit log")

	return cmd
}

func runMovementsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	categoria := args[1]
	var subcategoria string
	if len(args) == 3 {
		subcategoria = args[2]
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	if !cat.Declares(categoria, subcategoria) {
		cmd.Println(cli.FormatWarning(fmt.Sprintf("%s is not declared in catalog %s",
			label(categoria, subcategoria), cat.Version())))
	}

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	config := engine.DefaultConfig()
	config.PatternWords = appConfig.Learned.PatternWords
	remember, _ := cmd.Flags().GetBool("remember")

	result, err := engine.New(store, cascade.New(cat), config).SetManual(ctx, id, categoria, subcategoria, remember, actorFlag(cmd))
	if err != nil {
		return err
	}

	m := result.Movement
	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Movement %d classified as %s", m.ID, label(m.Categoria, m.Subcategoria))))
	cmd.Printf("  confianza %s, fuente %s\n", cli.FormatConfidence(m.Confianza), cli.FormatFuente(m.Fuente))
	if result.Rule != nil {
		cmd.Println(cli.FormatInfo(fmt.Sprintf("Learned rule %q (confianza %d, used %d times)",
			result.Rule.Pattern, result.Rule.Confidence, result.Rule.TimesUsed)))
	}
	return nil
}
