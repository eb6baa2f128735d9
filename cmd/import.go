package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/db"
	"github.com/sells-group/comp-benchmark/internal/tables"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the configured source files into the Postgres source schema",
	Long: "Reads every configured survey, employee, level map, alias, category and FX file\n" +
		"and replaces the matching Postgres tables, so later runs can use sources.driver=postgres.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		t, err := cfg.Sources.FileSource().Load(ctx)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Sources.DatabaseURL, cfg.Sources.Pool)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		counts, err := tables.Publish(ctx, pool, t)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TABLE\tROWS")
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
		}
		_ = w.Flush()

		zap.L().Info("import: complete", zap.Int("tables", len(counts)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
