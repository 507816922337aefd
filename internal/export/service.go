package export

import (
	"fmt"
	"strings"
)

const pendingMarker = "[未生成]"

// Service renders proposal documents.
type Service struct {
	fontPath string
}

// NewService creates an export service. fontPath points to a TTF file with
// CJK coverage and is only required for PDF output.
func NewService(fontPath string) *Service {
	return &Service{fontPath: fontPath}
}

// Export renders the document in the requested format.
func (s *Service) Export(doc Document, format Format) (*Result, error) {
	if len(doc.Sections) == 0 {
		return nil, ErrNoSections
	}

	switch format {
	case FormatMarkdown:
		return &Result{
			Data:     []byte(renderMarkdown(doc)),
			Filename: sanitizeFilename(doc.ProjectName) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	case FormatText:
		return &Result{
			Data:     []byte(renderText(doc)),
			Filename: sanitizeFilename(doc.ProjectName) + ".txt",
			MimeType: "text/plain; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.exportPDF(doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderMarkdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.ProjectName)
	fmt.Fprintf(&b, "生成时间：%s\n", doc.GeneratedAt.Format("2006-01-02 15:04"))

	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", sec.Title)
		if sec.Pending {
			b.WriteString(pendingMarker + "\n")
			continue
		}
		b.WriteString(strings.TrimSpace(sec.Body))
		b.WriteString("\n")
	}
	return b.String()
}

func renderText(doc Document) string {
	var b strings.Builder
	b.WriteString(doc.ProjectName + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "生成时间：%s\n", doc.GeneratedAt.Format("2006-01-02 15:04"))

	for _, sec := range doc.Sections {
		b.WriteString("\n" + sec.Title + "\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		if sec.Pending {
			b.WriteString(pendingMarker + "\n")
			continue
		}
		b.WriteString(strings.TrimSpace(stripMarkdown(sec.Body)))
		b.WriteString("\n")
	}
	return b.String()
}

// stripMarkdown drops heading markers and emphasis so plain-text output
// reads cleanly. Generated section bodies arrive as light markdown.
func stripMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "# ")
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

// sanitizeFilename keeps letters, digits, and CJK runes so Chinese project
// names survive as download names.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x4E00 && r <= 0x9FFF:
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	result := b.String()
	runes := []rune(result)
	if len(runes) > 50 {
		result = string(runes[:50])
	}
	if result == "" {
		result = "proposal"
	}
	return result
}
