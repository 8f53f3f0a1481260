package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"tktcli/internal/config"
	"tktcli/internal/tools"
)

// ExcelWriter writes tool reports as .xlsx workbooks.
type ExcelWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewExcelWriter creates a writer rooted at the reports directory.
func NewExcelWriter(paths *config.Paths, logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{
		paths:  paths,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// WriteCountReport writes a file counting report to an .xlsx workbook
// and returns the file path. Existing files are overwritten.
func (w *ExcelWriter) WriteCountReport(report *tools.CountReport, name string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Counts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := [][]any{{"Folder", "Files"}}
	for _, fc := range report.Folders {
		rows = append(rows, []any{fc.Folder, fc.Count})
	}
	rows = append(rows, []any{"Total", report.TotalFiles})
	if err := writeRows(f, sheet, rows); err != nil {
		return "", err
	}

	if len(report.Gaps) > 0 {
		const gapSheet = "Gaps"
		if _, err := f.NewSheet(gapSheet); err != nil {
			return "", fmt.Errorf("failed to add sheet: %w", err)
		}
		gapRows := [][]any{{"Folder", "Missing Number"}}
		for _, gap := range report.Gaps {
			gapRows = append(gapRows, []any{gap.Folder, gap.Number})
		}
		if err := writeRows(f, gapSheet, gapRows); err != nil {
			return "", err
		}
	}

	return w.save(f, name)
}

// WritePDFReport writes a PDF page counting report: one row per file
// plus a summary sheet with per-size totals and the A4 equivalent.
func (w *ExcelWriter) WritePDFReport(report *tools.PDFReport, name string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Pages"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := [][]any{{"File", "Pages", "Error"}}
	for _, info := range report.Files {
		rows = append(rows, []any{info.Path, info.Pages, info.Error})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return "", err
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return "", fmt.Errorf("failed to add sheet: %w", err)
	}

	sizes := make([]string, 0, len(report.SizeCounts))
	for size := range report.SizeCounts {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	summaryRows := [][]any{{"Size", "Pages"}}
	for _, size := range sizes {
		summaryRows = append(summaryRows, []any{size, report.SizeCounts[size]})
	}
	summaryRows = append(summaryRows,
		[]any{"Total pages", report.TotalPages},
		[]any{"A4 equivalent", report.A4Equivalent},
		[]any{"Unreadable files", report.FailedFiles},
	)
	if err := writeRows(f, summary, summaryRows); err != nil {
		return "", err
	}

	return w.save(f, name)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

// save writes the workbook under the reports directory. An empty name
// gets a timestamped default.
func (w *ExcelWriter) save(f *excelize.File, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("report_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	}
	if filepath.Ext(name) != ".xlsx" {
		name += ".xlsx"
	}

	if err := os.MkdirAll(w.paths.ReportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(w.paths.ReportsDir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("report written", slog.String("path", path))
	return path, nil
}
