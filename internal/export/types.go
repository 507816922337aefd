// Package export renders generated proposal documents to downloadable formats.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatPDF      Format = "pdf"
)

// Section is one proposal section in outline order. Pending sections have
// no generated body yet and are rendered with a placeholder marker, never
// with fabricated content.
type Section struct {
	Title     string
	WordCount int
	Body      string
	Pending   bool
}

// Document is the assembled proposal handed to the renderer.
type Document struct {
	ProjectName string
	Sections    []Section
	GeneratedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrNoSections indicates there is nothing to export yet.
	ErrNoSections = errors.New("export: no sections")
	// ErrPDFFontMissing indicates the CJK font file for PDF export is unavailable.
	ErrPDFFontMissing = errors.New("export: pdf font missing")
	// ErrUnknownFormat indicates a format value outside the supported set.
	ErrUnknownFormat = errors.New("export: unknown format")
)
