package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/bqexport"
)

// BigQuery command flags
var (
	bqProject string
	bqDataset string
	bqTable   string

	bigqueryCmd = &cobra.Command{
		Use:   "bigquery [profile]",
		Short: "Export function coverage to BigQuery",
		Long: `Parse the profile and insert one row per function record into a
BigQuery table. The dataset and table are created if they don't exist.`,
		Example: `  coverage-report bigquery --project my-project --dataset coverage
  coverage-report bigquery build/coverage.txt --project my-project --dataset coverage --table weather_cli`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBigQuery,
	}
)

func init() {
	bigqueryCmd.Flags().StringVar(&bqProject, "project", "", "GCP project ID (default: bigquery.project)")
	bigqueryCmd.Flags().StringVar(&bqDataset, "dataset", "", "BigQuery dataset name (default: bigquery.dataset)")
	bigqueryCmd.Flags().StringVar(&bqTable, "table", "", "BigQuery table name (default: bigquery.table)")
	rootCmd.AddCommand(bigqueryCmd)
}

func runBigQuery(cmd *cobra.Command, args []string) error {
	p, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer p.logger.Close()

	flags := cmd.Flags()
	if flags.Changed("project") {
		p.cfg.BigQuery.Project = bqProject
	}
	if flags.Changed("dataset") {
		p.cfg.BigQuery.Dataset = bqDataset
	}
	if flags.Changed("table") {
		p.cfg.BigQuery.Table = bqTable
	}

	ctx := cmd.Context()

	table, module, err := p.parse(ctx)
	if err != nil {
		return err
	}

	meta := bqexport.NewMeta(module)
	rows := bqexport.Rows(table, meta)
	if len(rows) == 0 {
		p.logger.Warning("No covered functions to export")
		return nil
	}

	bq := p.cfg.BigQuery
	p.logger.Progress("Exporting %d rows to %s.%s.%s (run %s)", len(rows), bq.Project, bq.Dataset, bq.Table, meta.RunID)

	exporter, err := bqexport.NewExporter(ctx, bq.Project, bq.Dataset, bq.Table)
	if err != nil {
		return err
	}
	defer exporter.Close()

	inserted, err := exporter.Export(ctx, rows)
	if err != nil {
		return fmt.Errorf("export after %d rows: %w", inserted, err)
	}

	p.logger.Success("Exported %d rows", inserted)
	return nil
}
