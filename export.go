package triviareview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportStats writes s to path in a format picked by its extension: .json,
// .xlsx, or the text report for anything else.
func ExportStats(path string, s *Stats, label LabelFunc) error {
	if label == nil {
		label = DefaultLabel
	}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = exportJSON(path, s)
	case ".xlsx":
		err = exportXLSX(path, s, label)
	default:
		var buf bytes.Buffer
		if err = s.WriteText(&buf, label); err == nil {
			err = writeFileAtomic(path, buf.Bytes())
		}
	}
	if err != nil {
		return fmt.Errorf("failed to export statistics: %w", err)
	}
	return nil
}

func exportJSON(path string, s *Stats) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// exportXLSX writes one sheet per breakdown. Category and difficulty sheets
// have one column per code that occurs.
func exportXLSX(path string, s *Stats, label LabelFunc) error {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Overview"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return err
	}
	rows := [][]any{
		{"Total Questions", s.Total},
		{"Assigned", s.Assigned},
		{"Unassigned", s.Unassigned},
		{"Skipped", s.Skipped},
		{},
		{"Code", "Label", "Count"},
	}
	for _, code := range sortedKeys(s.ByCode) {
		rows = append(rows, []any{code, label(code), s.ByCode[code]})
	}
	if err := writeRows(f, overview, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(overview, "A", "B", 22); err != nil {
		return err
	}

	codes := sortedKeys(s.ByCode)
	if err := writeCrossTab(f, "By Category", "Category", s.ByCategory, s.ByCategoryCode, codes, label); err != nil {
		return err
	}
	if err := writeCrossTab(f, "By Difficulty", "Difficulty", s.ByDifficulty, s.ByDifficultyCode, codes, label); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeCrossTab(f *excelize.File, sheet, heading string, totals map[string]int, byCode map[string]map[int]int, codes []int, label LabelFunc) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []any{heading, "Total"}
	for _, code := range codes {
		header = append(header, label(code))
	}
	rows := [][]any{header}
	for _, key := range sortedKeys(totals) {
		row := []any{key, totals[key]}
		for _, code := range codes {
			row = append(row, byCode[key][code])
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 30)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := "A" + strconv.Itoa(i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
