package standards

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/search"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

func TestExtractCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"GB/T 50080-2016 普通混凝土拌合物性能试验方法标准.pdf", "GB/T 50080-2016"},
		{"GB 50300-2013 建筑工程施工质量验收统一标准", "GB 50300-2013"},
		{"JGJ 18-2012 钢筋焊接及验收规程", "JGJ 18-2012"},
		{"JGJ/T 104-2011 建筑工程冬期施工规程", "JGJ/T 104-2011"},
		{"CJJ 1-2008 城镇道路工程施工与质量验收规范", "CJJ 1-2008"},
		{"JTG F80-2017 公路工程质量检验评定标准", "JTG F80-2017"},
		{"DB11/T 1832-2021 建筑工程施工工艺规程", "DB11/T 1832-2021"},
		{"项目管理制度.docx", ""},
	}
	for _, tc := range cases {
		if got := ExtractCode(tc.in); got != tc.want {
			t.Errorf("ExtractCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractCodePrefersSlashTOverBareGB(t *testing.T) {
	got := ExtractCode("依据GB/T 14902-2012执行")
	if got != "GB/T 14902-2012" {
		t.Fatalf("got %q, want the GB/T form", got)
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"GB 50300-2013", CategoryNational},
		{"GB/T 50080-2016", CategoryNational},
		{"JGJ 18-2012", CategoryIndustry},
		{"CJJ 1-2008", CategoryIndustry},
		{"JTG F80-2017", CategoryIndustry},
		{"DB11/T 1832-2021", CategoryLocal},
		{"", CategoryOther},
		{"ISO 9001", CategoryOther},
	}
	for _, tc := range cases {
		if got := Categorize(tc.code); got != tc.want {
			t.Errorf("Categorize(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

type fakeCatalogStore struct {
	byHash    map[string]store.StandardDocument
	inserted  []store.StandardDocument
	deleted   []string
	failOnAdd error
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{byHash: map[string]store.StandardDocument{}}
}

func (f *fakeCatalogStore) InsertStandard(_ context.Context, d *store.StandardDocument) error {
	if f.failOnAdd != nil {
		return f.failOnAdd
	}
	if existing, ok := f.byHash[d.FileHash]; ok {
		return &store.ErrDuplicateStandard{Existing: existing}
	}
	d.ID = "std-" + d.FileHash[:8]
	f.byHash[d.FileHash] = *d
	f.inserted = append(f.inserted, *d)
	return nil
}

func (f *fakeCatalogStore) GetStandard(_ context.Context, id string) (store.StandardDocument, error) {
	for _, d := range f.byHash {
		if d.ID == id {
			return d, nil
		}
	}
	return store.StandardDocument{}, store.ErrNotFound
}

func (f *fakeCatalogStore) ListStandards(_ context.Context, category string, _ int) ([]store.StandardDocument, error) {
	var out []store.StandardDocument
	for _, d := range f.byHash {
		if category == "" || d.Category == category {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) SearchStandards(_ context.Context, _ string, _ int) ([]store.StandardDocument, error) {
	return nil, nil
}

func (f *fakeCatalogStore) DeleteStandard(_ context.Context, id string) error {
	for hash, d := range f.byHash {
		if d.ID == id {
			delete(f.byHash, hash)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeCatalogStore) StandardStatistics(_ context.Context) (store.CategoryStats, error) {
	stats := store.CategoryStats{ByCategory: map[string]int{}}
	for _, d := range f.byHash {
		stats.ByCategory[d.Category]++
		stats.Total++
	}
	return stats, nil
}

type fakeBlobStore struct {
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) Close() error { return nil }

type fakeIndexer struct {
	indexed []search.StandardRecord
	removed []string
}

func (f *fakeIndexer) IndexStandard(rec search.StandardRecord) { f.indexed = append(f.indexed, rec) }
func (f *fakeIndexer) DeleteStandard(id string)                { f.removed = append(f.removed, id) }

func TestAddStoresAndIndexes(t *testing.T) {
	st := newFakeCatalogStore()
	blobs := newFakeBlobStore()
	idx := &fakeIndexer{}
	svc := NewService(st, blobs, idx)

	raw := []byte("fake pdf bytes")
	res, err := svc.Add(context.Background(), "GB 50300-2013 验收统一标准.pdf", "", "本标准适用于建筑工程", raw)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Duplicate {
		t.Fatal("first add reported as duplicate")
	}
	if res.Standard.Code != "GB 50300-2013" {
		t.Fatalf("code = %q", res.Standard.Code)
	}
	if res.Standard.Category != CategoryNational {
		t.Fatalf("category = %q", res.Standard.Category)
	}
	if res.Standard.Name != "GB 50300-2013 验收统一标准" {
		t.Fatalf("name = %q", res.Standard.Name)
	}
	if len(blobs.objects) != 1 {
		t.Fatalf("expected 1 stored object, got %d", len(blobs.objects))
	}
	if len(idx.indexed) != 1 {
		t.Fatalf("expected 1 index call, got %d", len(idx.indexed))
	}
}

func TestAddDuplicateIsNonFatal(t *testing.T) {
	st := newFakeCatalogStore()
	blobs := newFakeBlobStore()
	svc := NewService(st, blobs, &fakeIndexer{})

	raw := []byte("same content")
	first, err := svc.Add(context.Background(), "JGJ 18-2012.pdf", "钢筋焊接规程", "内容", raw)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}

	second, err := svc.Add(context.Background(), "copy-of-JGJ 18-2012.pdf", "重复上传", "内容", raw)
	if err != nil {
		t.Fatalf("duplicate add should not error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second add not flagged as duplicate")
	}
	if second.Standard.ID != first.Standard.ID {
		t.Fatalf("duplicate should return existing entry, got %s vs %s", second.Standard.ID, first.Standard.ID)
	}
	if len(st.inserted) != 1 {
		t.Fatalf("expected a single catalog row, got %d", len(st.inserted))
	}
}

func TestAddCleansUpBlobOnInsertFailure(t *testing.T) {
	st := newFakeCatalogStore()
	st.failOnAdd = errors.New("db down")
	blobs := newFakeBlobStore()
	svc := NewService(st, blobs, nil)

	if _, err := svc.Add(context.Background(), "a.pdf", "x", "", []byte("data")); err == nil {
		t.Fatal("expected error")
	}
	if len(blobs.objects) != 0 {
		t.Fatalf("orphaned blob left behind: %d", len(blobs.objects))
	}
}

func TestDeleteRemovesRowBlobAndIndex(t *testing.T) {
	st := newFakeCatalogStore()
	blobs := newFakeBlobStore()
	idx := &fakeIndexer{}
	svc := NewService(st, blobs, idx)

	res, err := svc.Add(context.Background(), "CJJ 1-2008.pdf", "道路施工规范", "内容", []byte("bytes"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := svc.Delete(context.Background(), res.Standard.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(blobs.objects) != 0 {
		t.Fatal("blob not removed")
	}
	if len(idx.removed) != 1 || idx.removed[0] != res.Standard.ID {
		t.Fatalf("index delete not called: %v", idx.removed)
	}
	if _, err := svc.Get(context.Background(), res.Standard.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	st := newFakeCatalogStore()
	svc := NewService(st, newFakeBlobStore(), nil)

	files := []string{"GB 50300-2013.pdf", "GB/T 50080-2016.pdf", "JGJ 18-2012.pdf", "note.txt"}
	for i, f := range files {
		if _, err := svc.Add(context.Background(), f, f, "", []byte{byte(i)}); err != nil {
			t.Fatalf("Add %s: %v", f, err)
		}
	}

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Total != 4 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.ByCategory[CategoryNational] != 2 || stats.ByCategory[CategoryIndustry] != 1 || stats.ByCategory[CategoryOther] != 1 {
		t.Fatalf("by category = %v", stats.ByCategory)
	}
}
