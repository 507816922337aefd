package ingest

import (
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	tblPattern  = regexp.MustCompile(`(?s)<w:tbl[ >].*?</w:tbl>`)
	rowPattern  = regexp.MustCompile(`(?s)<w:tr[ >].*?</w:tr>`)
	cellPattern = regexp.MustCompile(`(?s)<w:tc[ >].*?</w:tc>`)
	paraPattern = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	runPattern  = regexp.MustCompile(`(?s)<w:t(?: [^>]*)?>(.*?)</w:t>`)
	brPattern   = regexp.MustCompile(`<w:br[^>]*/>`)
)

func (p *Parser) parseWord(path string) (Result, error) {
	name := filepath.Base(path)

	reader, err := docx.ReadDocxFile(path)
	if err != nil {
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("open docx: %w", err)}
	}
	defer reader.Close()

	xml := reader.Editable().GetContent()

	// Tables first, so their paragraphs are not double-counted as body text.
	var tableBlocks []string
	tableCount := 0
	body := tblPattern.ReplaceAllStringFunc(xml, func(tbl string) string {
		tableCount++
		var rows []string
		for _, tr := range rowPattern.FindAllString(tbl, -1) {
			var cells []string
			for _, tc := range cellPattern.FindAllString(tr, -1) {
				cells = append(cells, runText(tc))
			}
			rows = append(rows, strings.Join(cells, " | "))
		}
		tableBlocks = append(tableBlocks, fmt.Sprintf("Table %d:\n%s", tableCount, strings.Join(rows, "\n")))
		return ""
	})

	var paragraphs []string
	for _, paraXML := range paraPattern.FindAllString(body, -1) {
		text := runText(paraXML)
		if strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	content := strings.Join(paragraphs, "\n")
	if len(tableBlocks) > 0 {
		content += "\n\n--- Tables ---\n" + strings.Join(tableBlocks, "\n\n")
	}

	return Result{
		Content: content,
		Meta: Metadata{
			Kind:       "Word",
			FileName:   name,
			Paragraphs: len(paragraphs),
			Tables:     tableCount,
		},
	}, nil
}

// runText concatenates the <w:t> runs inside one XML fragment.
func runText(fragment string) string {
	fragment = brPattern.ReplaceAllString(fragment, "\n")
	var parts []string
	for _, m := range runPattern.FindAllStringSubmatch(fragment, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}
