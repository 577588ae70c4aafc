// Package export renders result sets as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/querypilot/querypilot/internal/database"
	apperrors "github.com/querypilot/querypilot/internal/errors"
	"github.com/querypilot/querypilot/internal/observability"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	xlsxSheetName = "Results"
)

// WriteCSV streams the result set as CSV with a header row
func WriteCSV(w io.Writer, rs *database.ResultSet) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(rs.Columns); err != nil {
		observability.RecordExportMetrics(FormatCSV, err)
		return apperrors.NewExportError(err, FormatCSV)
	}

	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i := range record {
			record[i] = cellString(row, i)
		}
		if err := writer.Write(record); err != nil {
			observability.RecordExportMetrics(FormatCSV, err)
			return apperrors.NewExportError(err, FormatCSV)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		observability.RecordExportMetrics(FormatCSV, err)
		return apperrors.NewExportError(err, FormatCSV)
	}

	observability.RecordExportMetrics(FormatCSV, nil)
	return nil
}

// WriteXLSX writes the result set as a single-sheet workbook
func WriteXLSX(w io.Writer, rs *database.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet is renamed rather than deleted so the workbook
	// always has exactly one sheet.
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, xlsxSheetName); err != nil {
		observability.RecordExportMetrics(FormatXLSX, err)
		return apperrors.NewExportError(err, FormatXLSX)
	}

	header := make([]interface{}, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(xlsxSheetName, "A1", &header); err != nil {
		observability.RecordExportMetrics(FormatXLSX, err)
		return apperrors.NewExportError(err, FormatXLSX)
	}

	for rowIdx, row := range rs.Rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			observability.RecordExportMetrics(FormatXLSX, err)
			return apperrors.NewExportError(err, FormatXLSX)
		}
		if err := f.SetSheetRow(xlsxSheetName, cell, &row); err != nil {
			observability.RecordExportMetrics(FormatXLSX, err)
			return apperrors.NewExportError(err, FormatXLSX)
		}
	}

	if err := f.Write(w); err != nil {
		observability.RecordExportMetrics(FormatXLSX, err)
		return apperrors.NewExportError(err, FormatXLSX)
	}

	observability.RecordExportMetrics(FormatXLSX, nil)
	return nil
}

// cellString renders one cell for CSV output. Nil becomes an empty field.
func cellString(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case float64:
		// %g keeps integers stored as REAL readable in spreadsheets
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
