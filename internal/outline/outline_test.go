package outline

import "testing"

const sampleJSON = `{
	"outline": [
		{
			"title": "1. 施工组织设计",
			"children": [
				{"title": "1.1 总体部署", "word_count": 1500, "description": "总体施工安排"},
				{"title": "1.2 进度计划", "word_count": 1000, "description": "工期与里程碑"}
			]
		},
		{"title": "2. 质量保证措施", "word_count": 2000, "description": "质量管理体系"}
	]
}`

func TestParseStructured(t *testing.T) {
	o := Parse(sampleJSON)
	if o.Unstructured {
		t.Fatal("expected structured outline")
	}
	if len(o.Sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(o.Sections))
	}
}

func TestParseFencedJSON(t *testing.T) {
	o := Parse("```json\n" + sampleJSON + "\n```")
	if o.Unstructured {
		t.Fatal("fenced JSON should parse as structured")
	}
}

func TestParseFallbackToRaw(t *testing.T) {
	raw := "一、施工组织设计\n二、质量保证措施"
	o := Parse(raw)
	if !o.Unstructured {
		t.Fatal("non-JSON response should be unstructured")
	}
	if o.Raw != raw {
		t.Error("raw text must be preserved verbatim")
	}
	if got := o.Flatten(); got != nil {
		t.Errorf("unstructured outline must not flatten, got %v", got)
	}
}

func TestFlattenOrderAndTitles(t *testing.T) {
	flat := Parse(sampleJSON).Flatten()
	if len(flat) != 3 {
		t.Fatalf("expected 3 generation-eligible sections, got %d", len(flat))
	}

	wantTitles := []string{
		"1. 施工组织设计 1.1 总体部署",
		"1. 施工组织设计 1.2 进度计划",
		"2. 质量保证措施",
	}
	for i, want := range wantTitles {
		if flat[i].Title != want {
			t.Errorf("section %d title = %q, want %q", i, flat[i].Title, want)
		}
	}
	if flat[2].WordCount != 2000 {
		t.Errorf("word count = %d, want 2000", flat[2].WordCount)
	}
}

func TestFind(t *testing.T) {
	o := Parse(sampleJSON)
	s, err := o.Find("2. 质量保证措施")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if s.Description != "质量管理体系" {
		t.Errorf("unexpected description %q", s.Description)
	}

	if _, err := o.Find("不存在的章节"); err == nil {
		t.Error("expected error for unknown section")
	}
}
