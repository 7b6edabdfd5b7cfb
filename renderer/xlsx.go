package renderer

import (
	"fmt"
	"io"

	"github.com/etnz/askwarren"
	"github.com/xuri/excelize/v2"
)

// WatchlistXLSX writes the watchlist as a spreadsheet.
func WatchlistXLSX(w io.Writer, items []askwarren.WatchlistItem) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Watchlist"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]any{{"Unternehmen", "Urteil", "Analysiert am"}}
	for _, it := range items {
		rows = append(rows, []any{it.Query, it.Verdict, FormatDate(it.Timestamp)})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "B", 40); err != nil {
		return err
	}
	return f.Write(w)
}

// AnalysisXLSX writes the analysis summary and one sheet per key figure.
func AnalysisXLSX(w io.Writer, a *askwarren.AnalysisResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Analyse"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]any{
		{"Unternehmen", a.Query},
		{"Urteil", askwarren.ExtractVerdict(a.Text)},
	}
	for _, s := range a.Sources {
		if s.Web != nil {
			rows = append(rows, []any{"Quelle", s.Web.Title, s.Web.URI})
		}
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}

	for _, spec := range askwarren.ChartSpecs(a.Charts) {
		if _, err := f.NewSheet(spec.Title); err != nil {
			return fmt.Errorf("cannot add sheet %q: %w", spec.Title, err)
		}
		rows := [][]any{{"Jahr", spec.Unit}}
		for _, p := range spec.Points {
			rows = append(rows, []any{p.Label, p.Value})
		}
		if err := writeRows(f, spec.Title, rows); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// writeRows fills sheet from A1, the first row in bold.
func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("cannot write row %d of %q: %w", i+1, sheet, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, bold)
}
