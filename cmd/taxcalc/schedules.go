package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"income-tax/db/ingestion"
	"income-tax/decision/schedule"
	"income-tax/decision/tax"
)

// =============================================================================
// REGIMES COMMAND
// =============================================================================

func regimesCommand() *cli.Command {
	return &cli.Command{
		Name:  "regimes",
		Usage: "List the configured tax schedules",
		Action: func(c *cli.Context) error {
			registry, store, err := loadRegistry(c)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			printSchedules(c, registry)
			return nil
		},
	}
}

func printSchedules(c *cli.Context, registry *tax.Registry) {
	out := c.App.Writer
	sym := tax.DefaultCurrencySymbol

	for _, s := range registry.Schedules() {
		label := "default"
		if s.Alternate {
			label = "alternate"
		}
		fmt.Fprintf(out, "%s regime (%s, %s)\n", s.Regime.Title(), s.Revision, label)
		fmt.Fprintf(out, "  Standard deduction: %s%s\n", sym, tax.FormatQuantity(s.StandardDeduction))
		if s.RebateThreshold != nil {
			fmt.Fprintf(out, "  Rebate: no tax up to %s%s taxable\n", sym, tax.FormatQuantity(*s.RebateThreshold))
		}
		if s.ItemizedDeductions {
			fmt.Fprintln(out, "  Itemized deductions allowed")
		}

		lower := "0"
		for _, slab := range s.Table.Slabs() {
			if slab.UpTo == nil {
				fmt.Fprintf(out, "    above %s%-12s %s\n", sym, lower, tax.FormatRate(slab.Rate))
				continue
			}
			upper := tax.FormatQuantity(*slab.UpTo)
			fmt.Fprintf(out, "    %s%s - %s%-10s %s\n", sym, lower, sym, upper, tax.FormatRate(slab.Rate))
			lower = upper
		}
		fmt.Fprintln(out)
	}
}

// =============================================================================
// SCHEDULES COMMAND
// =============================================================================

func storeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "store",
		Usage: "Snapshot store (clickhouse, postgres); defaults to --schedule-source when it names one",
	}
}

func storeName(c *cli.Context) string {
	if name := c.String("store"); name != "" {
		return name
	}
	switch source := strings.ToLower(c.String("schedule-source")); source {
	case sourceClickHouse, sourcePostgres:
		return source
	}
	return sourceClickHouse
}

func schedulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedules",
		Usage: "Manage stored tax schedules",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a YAML schedule document as snapshots",
				Flags: []cli.Flag{
					storeFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the YAML schedule document",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "no-activate",
						Usage: "Store the snapshots without activating them",
					},
				},
				Action: runImport,
			},
			{
				Name:   "list",
				Usage:  "List stored snapshots",
				Flags:  []cli.Flag{storeFlag()},
				Action: runList,
			},
			{
				Name:  "activate",
				Usage: "Activate a stored snapshot",
				Flags: []cli.Flag{
					storeFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Snapshot id",
						Required: true,
					},
				},
				Action: runActivate,
			},
			{
				Name:  "export",
				Usage: "Write the schedules from --schedule-source as a YAML document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
				Action: runExport,
			},
		},
	}
}

func runImport(c *cli.Context) error {
	ctx := c.Context
	store, err := openStore(c, storeName(c))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	path := c.String("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open schedule file: %w", err)
	}
	defer f.Close()

	summary, err := ingestion.NewImporter(store).ImportDocument(ctx, f, ingestion.Options{
		Source:   path,
		Activate: !c.Bool("no-activate"),
	})
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	out := c.App.Writer
	for _, res := range summary.Results {
		state := "reused"
		if res.Created {
			state = "created"
		}
		if res.Activated {
			state += ", active"
		}
		fmt.Fprintf(out, "%s  %s/%s  (%s)\n", res.SnapshotID, res.Regime, res.Revision, state)
	}
	fmt.Fprintf(out, "%d created, %d unchanged\n", summary.Created, summary.Reused)
	return nil
}

func runList(c *cli.Context) error {
	ctx := c.Context
	store, err := openStore(c, storeName(c))
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots, err := store.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREGIME\tREVISION\tALTERNATE\tACTIVE\tHASH\tCREATED\tSOURCE")
	for _, s := range snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%s\t%s\n",
			s.ID, s.Regime, s.Revision, s.Alternate, s.IsActive,
			shortHash(s.Hash), s.CreatedAt.Format("2006-01-02 15:04"), s.Source)
	}
	return tw.Flush()
}

func runActivate(c *cli.Context) error {
	id, err := uuid.Parse(c.String("id"))
	if err != nil {
		return fmt.Errorf("invalid snapshot id: %w", err)
	}

	store, err := openStore(c, storeName(c))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ActivateSnapshot(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Activated snapshot %s\n", id)
	return nil
}

func runExport(c *cli.Context) error {
	registry, store, err := loadRegistry(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	out := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	return schedule.Encode(out, registry.Schedules())
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
