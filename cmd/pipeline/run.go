package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jordanlanch/commercebi/pkg/cache"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/ingest"
	"github.com/jordanlanch/commercebi/pkg/kpi"
	"github.com/jordanlanch/commercebi/pkg/pipeline"
	"github.com/jordanlanch/commercebi/pkg/storage"
)

func newRunCmd(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline against the configured store",
		Long:  "Clean the raw extracts, replace every table in the store, rebuild attribution, publish it and refresh KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			ctx := cmd.Context()
			log := a.logger(cfg)

			params, err := kpi.ParseParams(cfg.KPICACCutoff, cfg.KPIGrowthYear)
			if err != nil {
				return err
			}

			db, err := a.openDB(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			var invalidator pipeline.CacheInvalidator
			if !noCache && cfg.RedisURL != "" {
				client, err := cache.NewClient(ctx, cfg.RedisURL)
				if err != nil {
					log.Warn("redis unavailable, skipping kpi cache invalidation", "error", err)
				} else {
					defer client.Close()
					invalidator = client
				}
			}

			sink, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}

			svc := pipeline.NewService(pipeline.Config{
				RawDir:     cfg.DataRawDir,
				CleanedDir: cfg.DataCleanedDir,
				Clean:      ingest.Options{RecomputeSegments: cfg.RecomputeSegments},
				KPIParams:  params,
			}, db, sink, kpi.NewService(db, nil, 0, nil, log), invalidator, nil, log)

			report, err := svc.Run(ctx)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not invalidate the Redis KPI cache")
	return cmd
}

func printReport(out io.Writer, r *pipeline.Report) {
	fmt.Fprintf(out, "Run %s: %s (%s)\n", r.RunID, r.Status, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	table := newTable(out, "Table", "Loaded", "Total", "Kept", "Dropped")
	for _, t := range r.Tables {
		table.Append([]string{t.Table, strconv.FormatBool(t.Loaded), fmt.Sprint(t.Total), fmt.Sprint(t.Kept), fmt.Sprint(t.Dropped)})
	}
	table.Render()

	fmt.Fprintf(out, "Attribution records: %d\n", r.AttributionRecords)
	if r.AttributionLocation != "" {
		fmt.Fprintf(out, "Published to: %s\n", r.AttributionLocation)
	}
	if r.KPIs != nil {
		printKPIs(out, r.KPIs)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "⚠ %s\n", w)
	}
}

func printKPIs(out io.Writer, report *kpi.Report) {
	table := newTable(out, "KPI", "Value")
	for _, m := range report.Metrics {
		value := strconv.FormatFloat(m.Value.Value, 'f', 2, 64)
		switch {
		case m.Error != "":
			value = "error: " + m.Error
		case m.Undefined:
			value = "undefined"
		}
		table.Append([]string{m.Name, value})
	}
	table.Render()
}

func newKPIsCmd(a *app) *cobra.Command {
	var cutoff string
	var year int

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute the headline KPIs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			ctx := cmd.Context()
			log := a.logger(cfg)

			if cutoff == "" {
				cutoff = cfg.KPICACCutoff
			}
			if year == 0 {
				year = cfg.KPIGrowthYear
			}
			params, err := kpi.ParseParams(cutoff, year)
			if err != nil {
				return err
			}

			db, err := a.openDB(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			report := kpi.NewService(db, nil, 0, nil, log).Compute(ctx, params)
			fmt.Fprintf(cmd.OutOrStdout(), "CAC cutoff %s, growth year %d\n", domain.FormatDate(params.CACCutoff), params.GrowthYear)
			printKPIs(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&cutoff, "cac-cutoff", "", "CAC signup cutoff (YYYY-MM-DD)")
	cmd.Flags().IntVar(&year, "growth-year", 0, "sales growth year")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			ctx := cmd.Context()
			log := a.logger(cfg)

			db, err := a.openDB(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Started", "Status", "Orders", "Attribution", "Warnings")
			for _, r := range runs {
				table.Append([]string{
					r.ID,
					r.StartedAt.Format(time.RFC3339),
					r.Status,
					fmt.Sprint(r.OrdersLoaded),
					fmt.Sprint(r.AttributionRecords),
					fmt.Sprint(len(r.Warnings)),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum runs to list")
	return cmd
}
