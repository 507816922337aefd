package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

const pdfFontName = "cjk"

// exportPDF renders the proposal as an A4 PDF. A UTF-8 TTF font with CJK
// coverage must be configured; the built-in core fonts cannot render
// Chinese text.
func (s *Service) exportPDF(doc Document) (*Result, error) {
	if s.fontPath == "" {
		return nil, fmt.Errorf("%w: no font configured", ErrPDFFontMissing)
	}
	if _, err := os.Stat(s.fontPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPDFFontMissing, s.fontPath)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8Font(pdfFontName, "", s.fontPath)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont(pdfFontName, "", 20)
	pdf.MultiCell(0, 10, doc.ProjectName, "", "C", false)
	pdf.Ln(2)

	pdf.SetFont(pdfFontName, "", 9)
	pdf.MultiCell(0, 5, "生成时间："+doc.GeneratedAt.Format("2006-01-02 15:04"), "", "C", false)
	pdf.Ln(6)

	for _, sec := range doc.Sections {
		pdf.SetFont(pdfFontName, "", 14)
		pdf.MultiCell(0, 8, sec.Title, "", "L", false)
		pdf.Ln(1)

		pdf.SetFont(pdfFontName, "", 11)
		body := pendingMarker
		if !sec.Pending {
			body = strings.TrimSpace(stripMarkdown(sec.Body))
		}
		pdf.MultiCell(0, 6, body, "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(doc.ProjectName) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
