package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	measurements "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

// BuildHistoryPDF renders a measurement history window as a PDF table.
func BuildHistoryPDF(catalog *quality.Catalog, deviceCode string, from, to time.Time, rows []measurements.Measurement) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Measurement History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", deviceCode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s", from.Format(time.RFC3339), to.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rows: %d", len(rows)))
	pdf.Ln(8)

	metrics := catalog.Metrics()
	colWidth := 230.0 / float64(len(metrics)+1)
	if colWidth > 40 {
		colWidth = 40
	}

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(colWidth, 6, "Captured", "1", 0, "C", false, 0, "")
	for _, metric := range metrics {
		pdf.CellFormat(colWidth, 6, metric.Label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, row := range rows {
		pdf.CellFormat(colWidth, 6, row.CapturedAt.Format("01-02 15:04"), "1", 0, "C", false, 0, "")
		for _, metric := range metrics {
			cell := ""
			if value := row.Value(metric.ID); value != nil {
				cell = fmt.Sprintf("%.2f", *value)
			}
			pdf.CellFormat(colWidth, 6, cell, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a measurement history window as an XLSX workbook.
func BuildHistoryXLSX(catalog *quality.Catalog, deviceCode string, from, to time.Time, rows []measurements.Measurement) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	historySheet := "history"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(historySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Measurement History")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", deviceCode)
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", from.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", to.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Rows")
	_ = f.SetCellValue(summarySheet, "B6", len(rows))

	metrics := catalog.Metrics()
	_ = f.SetCellValue(historySheet, "A1", "Captured")
	for i, metric := range metrics {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return nil, err
		}
		header := metric.Label
		if metric.Unit != "" {
			header = fmt.Sprintf("%s (%s)", metric.Label, metric.Unit)
		}
		_ = f.SetCellValue(historySheet, cell, header)
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(historySheet, cell, row.CapturedAt.Format(time.RFC3339))
		for c, metric := range metrics {
			value := row.Value(metric.ID)
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+2, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(historySheet, cell, *value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
