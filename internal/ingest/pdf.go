package ingest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// A page whose text layer yields fewer characters than this is treated as a
// scanned image and routed through OCR.
const minTextLayerChars = 16

var tableRowPattern = regexp.MustCompile(`\S+(?:\t+| {2,})\S+(?:\t+| {2,})\S+`)

func (p *Parser) parsePDF(path string) (Result, error) {
	name := filepath.Base(path)

	// pdfcpu validation catches truncated and malformed files before the
	// text-layer reader trips over them.
	if err := pdfapi.ValidateFile(path, nil); err != nil {
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("invalid pdf: %w", err)}
	}

	pageCount, err := pdfapi.PageCountFile(path)
	if err != nil {
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("page count: %w", err)}
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("open text layer: %w", err)}
	}
	defer f.Close()

	var parts []string
	var blank []int
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			blank = append(blank, i)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || len(strings.TrimSpace(text)) < minTextLayerChars {
			blank = append(blank, i)
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i, text))
	}

	ocrPages := 0
	if len(blank) > 0 && p.opts.OCREnabled {
		var ocrErr error
		if _, err := exec.LookPath(p.opts.OCRBinary); err != nil {
			ocrErr = fmt.Errorf("%w: %s not found", ErrOCRUnavailable, p.opts.OCRBinary)
		} else {
			for _, pageNum := range blank {
				text, err := p.ocrPage(path, pageNum)
				if err != nil {
					ocrErr = err
					continue
				}
				if strings.TrimSpace(text) == "" {
					continue
				}
				parts = append(parts, fmt.Sprintf("--- Page %d (OCR) ---\n%s", pageNum, text))
				ocrPages++
			}
		}
		// A wholly scanned document that produced nothing must not pass as
		// an empty success when the OCR path itself was the problem.
		if len(parts) == 0 && ocrErr != nil {
			return Result{}, &ParseError{File: name, Err: fmt.Errorf("scanned pages: %w", ocrErr)}
		}
	}

	content := strings.Join(parts, "\n\n")
	tables := 0
	if p.opts.TableExtraction {
		tables = countTableRegions(content)
	}

	return Result{
		Content: content,
		Meta: Metadata{
			Kind:     "PDF",
			FileName: name,
			Pages:    pageCount,
			OCRPages: ocrPages,
			Tables:   tables,
		},
	}, nil
}

// ocrPage renders one page's images to a temp dir via pdfcpu and runs the
// OCR engine over them.
func (p *Parser) ocrPage(path string, pageNum int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "bidreview-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pages := []string{fmt.Sprintf("%d", pageNum)}
	if err := pdfapi.ExtractImagesFile(path, tmpDir, pages, nil); err != nil {
		return "", fmt.Errorf("extract page images: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("read ocr dir: %w", err)
	}

	var texts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		text, err := p.runOCR(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// countTableRegions counts contiguous runs of column-separated lines, a
// cheap stand-in for full table geometry extraction.
func countTableRegions(content string) int {
	tables := 0
	rowRun := 0
	for _, line := range strings.Split(content, "\n") {
		if tableRowPattern.MatchString(line) {
			rowRun++
			continue
		}
		if rowRun >= 2 {
			tables++
		}
		rowRun = 0
	}
	if rowRun >= 2 {
		tables++
	}
	return tables
}
