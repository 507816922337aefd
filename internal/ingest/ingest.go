// Package ingest extracts text from uploaded bidding documents. Extraction
// dispatches on file extension; PDF pages without a usable text layer fall
// back to OCR when enabled.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrNotParsed marks formats that are accepted for storage but carry no
// extractable text (CAD drawings).
var ErrNotParsed = errors.New("format accepted but not parsed")

// ParseError wraps a per-file extraction failure so that a batch can keep
// going after one corrupt upload.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Metadata describes what extraction saw.
type Metadata struct {
	Kind       string `json:"kind"`
	FileName   string `json:"file_name"`
	Pages      int    `json:"pages,omitempty"`
	OCRPages   int    `json:"ocr_pages"`
	Sheets     int    `json:"sheets,omitempty"`
	Tables     int    `json:"tables,omitempty"`
	Paragraphs int    `json:"paragraphs,omitempty"`
}

// Result is the extracted text plus metadata for one file.
type Result struct {
	Content string   `json:"content"`
	Meta    Metadata `json:"metadata"`
}

// Options tunes the parser. Zero value disables OCR and table extraction.
type Options struct {
	OCREnabled       bool
	OCRBinary        string
	OCRMinConfidence int
	TableExtraction  bool
}

// Parser extracts text from supported document formats. Construct once per
// process and share; it holds no per-file state.
type Parser struct {
	opts Options
}

func NewParser(opts Options) *Parser {
	if opts.OCRBinary == "" {
		opts.OCRBinary = "tesseract"
	}
	return &Parser{opts: opts}
}

// Parse extracts text from the file at path, dispatching on its extension.
func (p *Parser) Parse(path string) (Result, error) {
	name := filepath.Base(path)
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "pdf":
		return p.parsePDF(path)
	case "doc", "docx":
		return p.parseWord(path)
	case "xls", "xlsx":
		return p.parseExcel(path)
	case "dwg":
		return Result{Meta: Metadata{Kind: "CAD", FileName: name}}, &ParseError{File: name, Err: ErrNotParsed}
	default:
		return Result{}, &ParseError{File: name, Err: fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)}
	}
}
