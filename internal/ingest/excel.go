package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// maxColumnWidth caps cell padding so a single verbose cell cannot blow up
// the aligned layout.
const maxColumnWidth = 100

func (p *Parser) parseExcel(path string) (Result, error) {
	name := filepath.Base(path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string
	for _, sheet := range sheets {
		// RawCellValue keeps numeric cells as typed strings, so codes like
		// "001" or long amounts survive without reformatting.
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return Result{}, &ParseError{File: name, Err: fmt.Errorf("read sheet %s: %w", sheet, err)}
		}

		banner := strings.Repeat("=", 50)
		parts = append(parts, fmt.Sprintf("%s\nSheet: %s\n%s", banner, sheet, banner))
		if len(rows) == 0 {
			parts = append(parts, "(empty sheet)")
			continue
		}
		parts = append(parts, alignRows(rows))
	}

	return Result{
		Content: strings.Join(parts, "\n"),
		Meta: Metadata{
			Kind:     "Excel",
			FileName: name,
			Sheets:   len(sheets),
		},
	}, nil
}

// alignRows renders rows as column-aligned text.
func alignRows(rows [][]string) string {
	widths := map[int]int{}
	for _, row := range rows {
		for col, cell := range row {
			w := utf8.RuneCountInString(cell)
			if w > maxColumnWidth {
				w = maxColumnWidth
			}
			if w > widths[col] {
				widths[col] = w
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for col, cell := range row {
			if utf8.RuneCountInString(cell) > maxColumnWidth {
				cell = string([]rune(cell)[:maxColumnWidth])
			}
			b.WriteString(cell)
			if col < len(row)-1 {
				pad := widths[col] - utf8.RuneCountInString(cell)
				b.WriteString(strings.Repeat(" ", pad+2))
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
