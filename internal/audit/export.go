package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports history as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatXLSX exports history as an Excel workbook.
	ExportFormatXLSX ExportFormat = "xlsx"
)

// exportBatchSize bounds how many records a single export fetches per query.
const exportBatchSize = 500

// ExportOptions configures a history export.
type ExportOptions struct {
	Format ExportFormat
	Filter Filter
	Limit  int // maximum rows to export (0 = no limit)
}

// ExportHistory exports change records matching the options. Snapshots are
// redacted with the same policy as the history read path before leaving the
// service.
func ExportHistory(ctx context.Context, repo Repository, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatXLSX {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
	if repo == nil {
		return nil, ErrNilRepository
	}

	var records []*ChangeRecord
	for offset := 0; ; offset += exportBatchSize {
		batch, _, err := repo.Query(ctx, opts.Filter, offset, exportBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to query history for export: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < exportBatchSize {
			break
		}
		if opts.Limit > 0 && len(records) >= opts.Limit {
			break
		}
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	switch opts.Format {
	case ExportFormatCSV:
		return exportToCSV(records)
	default:
		return exportToXLSX(records)
	}
}

var exportHeader = []string{
	"id", "entity", "record_id", "action", "actor_id",
	"before_state", "after_state", "client_ip", "client_agent", "occurred_at",
}

func exportRow(rec *ChangeRecord) ([]string, error) {
	actor := ""
	if rec.ActorID != nil {
		actor = *rec.ActorID
	}
	before, err := encodeStateForExport(rec.BeforeState, false)
	if err != nil {
		return nil, err
	}
	after, err := encodeStateForExport(rec.AfterState, rec.Action == ActionCreate)
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.EntityName,
		rec.EntityID,
		string(rec.Action),
		actor,
		before,
		after,
		rec.ClientIP,
		rec.ClientAgent,
		rec.OccurredAt.UTC().Format(time.RFC3339),
	}, nil
}

func encodeStateForExport(s Snapshot, keepGenerated bool) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(RedactSnapshot(s, keepGenerated))
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(b), nil
}

func exportToCSV(records []*ChangeRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row, err := exportRow(rec)
		if err != nil {
			return nil, err
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func exportToXLSX(records []*ChangeRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "History"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	writeRow := func(rowIdx int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeRow(1, exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	for i, rec := range records {
		row, err := exportRow(rec)
		if err != nil {
			return nil, err
		}
		if err := writeRow(i+2, row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
