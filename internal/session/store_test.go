package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/outline"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return store, s
}

func storesUnderTest(t *testing.T) map[string]Store {
	store, _ := setupRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  store,
	}
}

func TestLoadMissingSession(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			w := NewWorkflow()
			w.Name = "地铁三号线土建工程"
			w.Contents["招标文件正文"] = "正文内容"
			w.Files["招标文件正文"] = "main_20240101.pdf"
			w.Processed["招标文件正文_main.pdf_1024"] = true
			w.AnalysisReport = "## 一、基本信息"
			w.Sections["1. 施工部署"] = "章节正文"
			w.Outline = &outline.Outline{
				Sections: []outline.Section{{Title: "1. 施工部署", WordCount: 1200}},
			}

			if err := store.Save(ctx, "sid", w); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := store.Load(ctx, "sid")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Name != w.Name {
				t.Errorf("name = %q", loaded.Name)
			}
			if loaded.Contents["招标文件正文"] != "正文内容" {
				t.Error("contents lost in round trip")
			}
			if !loaded.Processed["招标文件正文_main.pdf_1024"] {
				t.Error("processed set lost in round trip")
			}
			if loaded.Outline == nil || len(loaded.Outline.Sections) != 1 {
				t.Error("outline lost in round trip")
			}
		})
	}
}

func TestSaveIsolatesCallerCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w := NewWorkflow()
	w.Contents["a"] = "original"
	if err := store.Save(ctx, "sid", w); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy after Save must not leak into the store.
	w.Contents["a"] = "mutated"

	loaded, err := store.Load(ctx, "sid")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Contents["a"] != "original" {
		t.Error("store returned a shared mutable copy")
	}
}

func TestDelete(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			if err := store.Save(ctx, "sid", NewWorkflow()); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "sid"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Load(ctx, "sid"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestRedisSessionExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, "sid", NewWorkflow()); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := store.Load(ctx, "sid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	w := NewWorkflow()

	if err := w.CanAnalyze(); err == nil {
		t.Error("analysis must be refused with no content")
	}
	w.Contents["a"] = "   "
	if err := w.CanAnalyze(); err == nil {
		t.Error("whitespace-only content must not satisfy the analysis gate")
	}
	w.Contents["a"] = "实际内容"
	if err := w.CanAnalyze(); err != nil {
		t.Errorf("CanAnalyze: %v", err)
	}

	if err := w.CanExtractCriteria(); err == nil {
		t.Error("criteria extraction must be refused before analysis")
	}
	w.AnalysisReport = "报告"
	if err := w.CanExtractCriteria(); err != nil {
		t.Errorf("CanExtractCriteria: %v", err)
	}

	if err := w.CanOutline(); err == nil {
		t.Error("outline must be refused before criteria")
	}
	w.EvaluationCriteria = "标准"
	if err := w.CanOutline(); err != nil {
		t.Errorf("CanOutline: %v", err)
	}

	if _, err := w.CanGenerateSection("1. 施工部署"); err == nil {
		t.Error("section generation must be refused with no outline")
	}
	w.Outline = &outline.Outline{Raw: "raw", Unstructured: true}
	if _, err := w.CanGenerateSection("1. 施工部署"); err == nil {
		t.Error("section generation must be refused for unstructured outline")
	}
	w.Outline = &outline.Outline{Sections: []outline.Section{{Title: "1. 施工部署", WordCount: 1200}}}
	if _, err := w.CanGenerateSection("不存在"); err == nil {
		t.Error("section generation must be refused for unknown section")
	}
	section, err := w.CanGenerateSection("1. 施工部署")
	if err != nil {
		t.Fatalf("CanGenerateSection: %v", err)
	}
	if section.WordCount != 1200 {
		t.Errorf("word count = %d", section.WordCount)
	}
}

func TestPreconditionErrorType(t *testing.T) {
	w := NewWorkflow()
	err := w.CanAnalyze()

	var precondErr *PreconditionError
	if !errors.As(err, &precondErr) {
		t.Fatalf("expected PreconditionError, got %T", err)
	}
	if precondErr.Action != "analysis" {
		t.Errorf("action = %q", precondErr.Action)
	}
}
