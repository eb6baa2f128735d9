package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/tables"
)

var (
	buildOut      string
	buildFormat   string
	buildCurrency string
	buildNoCache  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the full benchmark table and write it to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := tables.FormatFor(buildOut, buildFormat)
		if err != nil {
			return err
		}

		env, err := initBuildEnv(ctx, "build", !buildNoCache)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := env.Options
		if buildCurrency != "" {
			opts.ReferenceCurrency = buildCurrency
		}

		res, err := resolveTable(ctx, env.Tables, opts, env.Store, cacheTTL())
		if err != nil {
			return err
		}

		if err := tables.WriteFile(buildOut, format, res.Rows); err != nil {
			return err
		}

		zap.L().Info("build: wrote benchmark table",
			zap.String("path", buildOut),
			zap.String("format", format),
			zap.Int("rows", len(res.Rows)),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s (fingerprint %s, cache hit: %t)\n",
			len(res.Rows), buildOut, shortFingerprint(res.Fingerprint), res.CacheHit)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildOut, "out", "", "output file path")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "output format: csv, xlsx or json (default from --out extension)")
	buildCmd.Flags().StringVar(&buildCurrency, "currency", "", "convert money figures into this reference currency")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "skip the result cache")
	_ = buildCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(buildCmd)
}
