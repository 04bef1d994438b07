package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/Veraticus/toro/internal/upgrade"
	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Administer taxonomy versions and upgrades",
		Long: `Register taxonomy versions, load the mappings between them and move
stored classifications from one version to the next.

Upgrades never touch manual classifications. Always simulate first: apply asks
for confirmation, snapshots the database and records one audit entry.`,
	}

	cmd.AddCommand(catalogVersionCmd())
	cmd.AddCommand(catalogMappingsCmd())
	cmd.AddCommand(catalogUpgradeCmd())
	cmd.AddCommand(catalogSnapshotsCmd())

	return cmd
}

func catalogVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage taxonomy versions",
	}

	create := &cobra.Command{
		Use:     "create <version>",
		Short:   "Register a taxonomy version",
		Example: `  toro catalog version create 2025.1 --description "Split Servicios by provider"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			description, _ := cmd.Flags().GetString("description")
			version, err := upgrade.New(store).CreateVersion(ctx, args[0], description, actorFlag(cmd))
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Created catalog version %s", version.Version)))
			return nil
		},
	}
	create.Flags().String("description", "", "what changed in this version")
	create.Flags().String("as", "", "actor recorded in the audit log")

	list := &cobra.Command{
		Use:   "list",
		Short: "List taxonomy versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			versions, err := upgrade.New(store).ListVersions(ctx)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				cmd.Println(cli.FormatInfo("No catalog versions registered"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, "Version\tCreada\tPor\tDescripción")
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, separator(10, 16, 12, 40))
			for _, v := range versions {
				//nolint:forbidigo // User-facing output
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					v.Version,
					v.CreatedAt.Local().Format("2006-01-02 15:04"),
					orDash(v.CreatedBy),
					truncate(v.Descripcion, 40),
				)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(create)
	cmd.AddCommand(list)
	return cmd
}

func catalogMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage upgrade mappings",
	}

	load := &cobra.Command{
		Use:   "load <file>",
		Short: "Load upgrade mappings from a YAML file",
		Example: `  # mappings.yaml
  from_version: "2024.1"
  to_version: "2025.1"
  mappings:
    - from_cat: EGRESOS
      from_sub: Servicios
      to_cat: EGRESOS
      to_sub: Servicios_Electricidad
      action: RENAME

  toro catalog mappings load mappings.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mappings, err := upgrade.LoadMappingFile(args[0])
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := upgrade.New(store).LoadMappings(ctx, actorFlag(cmd), mappings)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Loaded %d upgrade mappings", n)))
			return nil
		},
	}
	load.Flags().String("as", "", "actor recorded in the audit log")

	list := &cobra.Command{
		Use:   "list <from-version> <to-version>",
		Short: "List the mappings between two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			mappings, err := upgrade.New(store).Mappings(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("No mappings from %s to %s", args[0], args[1])))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, "#\tDesde\tHacia\tAcción")
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, separator(3, 36, 36, 10))
			for i, m := range mappings {
				from := label(m.FromCat, m.FromSub)
				if m.FromSub == "" {
					from = m.FromCat + "/*"
				}
				//nolint:forbidigo // User-facing output
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, from, label(m.ToCat, m.ToSub), m.Action)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(load)
	cmd.AddCommand(list)
	return cmd
}

func catalogUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Move stored classifications to another taxonomy version",
	}

	simulate := &cobra.Command{
		Use:   "simulate <from-version> <to-version>",
		Short: "Count the movements an upgrade would change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			scope, err := scopeFromFlags(cmd)
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sim, err := upgrade.New(store).Simulate(ctx, args[0], args[1], scope)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sim)
			}

			cmd.Println(cli.RenderSimulation(sim))
			return nil
		},
	}
	addScopeFlags(simulate)
	simulate.Flags().Bool("json", false, "print the simulation as JSON")

	apply := &cobra.Command{
		Use:   "apply <from-version> <to-version>",
		Short: "Apply an upgrade",
		Long: `Rewrite every non-manual movement matched by a mapping to the mapping's
target with confianza 90. The database is snapshotted first unless
--no-snapshot is given.`,
		Example: `  toro catalog upgrade apply 2024.1 2025.1 --desde 2024-01-01 --hasta 2024-12-31`,
		Args:    cobra.ExactArgs(2),
		RunE:    runUpgradeApply,
	}
	addScopeFlags(apply)
	apply.Flags().BoolP("yes", "y", false, "apply without asking for confirmation")
	apply.Flags().Bool("no-snapshot", false, "skip the database snapshot")
	apply.Flags().String("as", "", "actor recorded in the audit log")

	cmd.AddCommand(simulate)
	cmd.AddCommand(apply)
	return cmd
}

func runUpgradeApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	from, to := args[0], args[1]

	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	manager := upgrade.New(store)
	noSnapshot, _ := cmd.Flags().GetBool("no-snapshot")
	if !noSnapshot {
		snapshots, snapErr := store.NewSnapshotManager()
		switch {
		case errors.Is(snapErr, storage.ErrSnapshotUnsupported):
			cmd.Println(cli.FormatWarning("In-memory database, no snapshot will be taken"))
		case snapErr != nil:
			return fmt.Errorf("failed to prepare snapshots: %w", snapErr)
		default:
			manager = manager.WithSnapshots(snapshots)
		}
	}

	confirmed, _ := cmd.Flags().GetBool("yes")
	if !confirmed {
		sim, simErr := manager.Simulate(ctx, from, to, scope)
		if simErr != nil {
			return simErr
		}
		cmd.Println(cli.RenderSimulation(sim))

		reader := cli.NewNonBlockingReader(os.Stdin)
		confirmed, err = cli.Confirm(ctx, reader, cmd.OutOrStdout(),
			fmt.Sprintf("Apply upgrade %s → %s?", from, to))
		if err != nil {
			return err
		}
		if !confirmed {
			cmd.Println(cli.FormatInfo("Upgrade cancelled, nothing was changed"))
			return nil
		}
	}

	result, err := manager.Apply(ctx, upgrade.ApplyRequest{
		From:     from,
		To:       to,
		Scope:    scope,
		Actor:    actorFlag(cmd),
		Confirm:  confirmed,
		Snapshot: !noSnapshot,
	})
	if err != nil {
		return err
	}

	cmd.Println(cli.RenderUpgrade(from, to, result))
	return nil
}

func catalogSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List database snapshots taken before upgrades",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			manager, err := store.NewSnapshotManager()
			if err != nil {
				return err
			}
			snapshots, err := manager.List(ctx)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				cmd.Println(cli.FormatInfo("No snapshots"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, "ID\tCreado\tTamaño\tMovimientos\tAuto")
			//nolint:forbidigo // User-facing output
			fmt.Fprintln(w, separator(36, 16, 10, 11, 4))
			for _, s := range snapshots {
				//nolint:forbidigo // User-facing output
				fmt.Fprintf(w, "%s\t%s\t%d KB\t%d\t%t\n",
					s.ID,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					s.FileSize/1024,
					s.RowCounts["movimientos"],
					s.IsAuto,
				)
			}
			return w.Flush()
		},
	}
}
