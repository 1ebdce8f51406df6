// Package bqexport publishes coverage tables to Google BigQuery, one row
// per function record.
package bqexport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/jupierce/coverage-report/pkg/report"
)

// BatchSize is the number of rows sent per insert call.
const BatchSize = 500

// Row is one function record in the function_coverage table.
type Row struct {
	IngestionTime  time.Time `bigquery:"ingestion_time"`
	RunID          string    `bigquery:"run_id"`
	Module         string    `bigquery:"module"`
	SourceFilename string    `bigquery:"source_filename"`
	SourceLine     string    `bigquery:"source_line"`
	FunctionName   string    `bigquery:"function_name"`
	Coverage       string    `bigquery:"coverage"`
	Position       int       `bigquery:"position"`
}

// Meta describes the run a table belongs to.
type Meta struct {
	RunID         string
	Module        string
	IngestionTime time.Time
}

// NewMeta returns metadata with a random run id and the current UTC time.
func NewMeta(module string) Meta {
	return Meta{
		RunID:         uuid.NewString(),
		Module:        module,
		IngestionTime: time.Now().UTC(),
	}
}

// Rows flattens table into rows. Position numbers records across the whole
// table in table order.
func Rows(table *report.Table, meta Meta) []Row {
	rows := make([]Row, 0, table.RecordCount())
	for _, entry := range table.Entries() {
		for _, rec := range entry.Records {
			rows = append(rows, Row{
				IngestionTime:  meta.IngestionTime,
				RunID:          meta.RunID,
				Module:         meta.Module,
				SourceFilename: entry.File,
				SourceLine:     rec.Line,
				FunctionName:   rec.Function,
				Coverage:       rec.Percentage,
				Position:       len(rows),
			})
		}
	}
	return rows
}

// Schema is the BigQuery schema matching Row.
func Schema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "module", Type: bigquery.StringFieldType, Required: true},
		{Name: "source_filename", Type: bigquery.StringFieldType, Required: true},
		{Name: "source_line", Type: bigquery.StringFieldType},
		{Name: "function_name", Type: bigquery.StringFieldType, Required: true},
		{Name: "coverage", Type: bigquery.StringFieldType, Required: true},
		{Name: "position", Type: bigquery.IntegerFieldType, Required: true},
	}
}

// Exporter writes rows into a BigQuery table.
type Exporter struct {
	client  *bigquery.Client
	Project string
	Dataset string
	Table   string
}

// NewExporter creates a BigQuery client for project.
func NewExporter(ctx context.Context, project, dataset, table string) (*Exporter, error) {
	if project == "" || dataset == "" || table == "" {
		return nil, errors.New("bigquery project, dataset and table are required")
	}

	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("create BigQuery client: %w", err)
	}
	return &Exporter{client: client, Project: project, Dataset: dataset, Table: table}, nil
}

// Close releases the client
func (e *Exporter) Close() error {
	return e.client.Close()
}

// Export ensures the dataset and table exist and inserts rows in batches.
// It returns the number of rows inserted before any failure.
func (e *Exporter) Export(ctx context.Context, rows []Row) (int, error) {
	if err := e.ensureTable(ctx); err != nil {
		return 0, err
	}

	inserter := e.client.Dataset(e.Dataset).Table(e.Table).Inserter()

	inserted := 0
	for _, batch := range Batches(rows, BatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return inserted, fmt.Errorf("insert rows at offset %d: %w", inserted, err)
		}
		inserted += len(batch)
	}
	return inserted, nil
}

func (e *Exporter) ensureTable(ctx context.Context) error {
	dataset := e.client.Dataset(e.Dataset)
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create dataset: %w", err)
	}

	table := dataset.Table(e.Table)
	err := table.Create(ctx, &bigquery.TableMetadata{
		Schema: Schema(),
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"module", "run_id"},
		},
	})
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("create %s table: %w", e.Table, err)
	}
	return nil
}

func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// Batches splits rows into consecutive slices of at most size rows.
func Batches(rows []Row, size int) [][]Row {
	if size < 1 {
		size = BatchSize
	}
	var batches [][]Row
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
