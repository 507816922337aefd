package export

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleDocument() Document {
	return Document{
		ProjectName: "市政道路改造项目投标方案",
		GeneratedAt: time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC),
		Sections: []Section{
			{Title: "1 项目概述", WordCount: 800, Body: "## 背景\n本项目位于**城区主干道**。"},
			{Title: "2 施工组织设计", WordCount: 1500, Pending: true},
			{Title: "3 质量保证措施", WordCount: 1200, Body: "按 GB 50300-2013 执行。"},
			{Title: "4 安全文明施工", WordCount: 1000, Pending: true},
			{Title: "5 售后服务承诺", WordCount: 600, Pending: true},
		},
	}
}

func TestExportMarkdown(t *testing.T) {
	svc := NewService("")
	res, err := svc.Export(sampleDocument(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(res.Data)

	if !strings.HasPrefix(out, "# 市政道路改造项目投标方案") {
		t.Fatalf("missing title heading:\n%s", out)
	}
	for _, title := range []string{"## 1 项目概述", "## 2 施工组织设计", "## 3 质量保证措施"} {
		if !strings.Contains(out, title) {
			t.Errorf("missing section heading %q", title)
		}
	}
	if !strings.Contains(out, "城区主干道") {
		t.Error("generated body dropped")
	}
	if res.Filename != "市政道路改造项目投标方案.md" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.MimeType != "text/markdown; charset=utf-8" {
		t.Errorf("mime = %q", res.MimeType)
	}
}

func TestExportMarksPendingSectionsOnly(t *testing.T) {
	svc := NewService("")
	res, err := svc.Export(sampleDocument(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(res.Data)

	if got := strings.Count(out, pendingMarker); got != 3 {
		t.Fatalf("pending markers = %d, want 3", got)
	}
	// Generated sections keep their own body, never the marker.
	body := out[strings.Index(out, "## 1 项目概述"):strings.Index(out, "## 2 施工组织设计")]
	if strings.Contains(body, pendingMarker) {
		t.Error("generated section rendered as pending")
	}
}

func TestExportSectionsKeepOutlineOrder(t *testing.T) {
	svc := NewService("")
	res, err := svc.Export(sampleDocument(), FormatText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(res.Data)

	last := -1
	for _, title := range []string{"1 项目概述", "2 施工组织设计", "3 质量保证措施", "4 安全文明施工", "5 售后服务承诺"} {
		idx := strings.Index(out, title)
		if idx < 0 {
			t.Fatalf("section %q missing", title)
		}
		if idx < last {
			t.Fatalf("section %q out of order", title)
		}
		last = idx
	}
}

func TestExportTextStripsMarkdown(t *testing.T) {
	svc := NewService("")
	res, err := svc.Export(sampleDocument(), FormatText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(res.Data)

	if strings.Contains(out, "## 背景") {
		t.Error("heading marker survived in text output")
	}
	if strings.Contains(out, "**") {
		t.Error("emphasis marker survived in text output")
	}
	if !strings.Contains(out, "城区主干道") {
		t.Error("body text dropped")
	}
}

func TestExportEmptyDocument(t *testing.T) {
	svc := NewService("")
	if _, err := svc.Export(Document{ProjectName: "空"}, FormatMarkdown); err != ErrNoSections {
		t.Fatalf("err = %v, want ErrNoSections", err)
	}
}

func TestExportPDFRequiresFont(t *testing.T) {
	svc := NewService("")
	_, err := svc.Export(sampleDocument(), FormatPDF)
	if err == nil {
		t.Fatal("expected error without font")
	}
	if !strings.Contains(err.Error(), "font") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExportUnknownFormatIsTyped(t *testing.T) {
	svc := NewService("")
	_, err := svc.Export(sampleDocument(), Format("epub"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"市政道路改造项目", "市政道路改造项目"},
		{"Project Alpha / v2", "Project-Alpha--v2"},
		{"///", "proposal"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
