package score

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// GradebookRow is one student's aggregate line in a class gradebook export.
type GradebookRow struct {
	StudentID   string
	StudentName string
	ScoreCount  int
	Average     float64
	Band        string
}

var gradebookHeader = []string{"student_id", "student_name", "scores", "average", "band"}

func gradebookCells(row GradebookRow) []string {
	return []string{
		row.StudentID,
		row.StudentName,
		strconv.Itoa(row.ScoreCount),
		strconv.FormatFloat(row.Average, 'f', 2, 64),
		row.Band,
	}
}

// ExportGradebook renders gradebook rows as a CSV or XLSX document.
func ExportGradebook(rows []GradebookRow, format audit.ExportFormat) ([]byte, error) {
	switch format {
	case audit.ExportFormatCSV:
		return gradebookToCSV(rows)
	case audit.ExportFormatXLSX:
		return gradebookToXLSX(rows)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func gradebookToCSV(rows []GradebookRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(gradebookHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(gradebookCells(row)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func gradebookToXLSX(rows []GradebookRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Gradebook"
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

	if err := writeRow(1, gradebookHeader); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, gradebookCells(row)); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
