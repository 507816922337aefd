package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/export"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/standards"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeAI) {
	t.Helper()
	aiSvc := &fakeAI{report: "报告", criteria: "标准", outline: testOutline(), sectionText: "内容"}
	svc, _ := newTestService(newFakeDataStore(), aiSvc, &fakeParser{content: "解析内容"})
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server, aiSvc
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionHeaderGeneratedAndEchoed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/workflow")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	generated := resp.Header.Get(sessionHeader)
	if generated == "" {
		t.Fatal("no session id generated")
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/workflow", nil)
	req.Header.Set(sessionHeader, generated)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get(sessionHeader); got != generated {
		t.Fatalf("session id not echoed: %q vs %q", got, generated)
	}
}

func TestAnalyzeWithoutContentReturnsConflict(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/workflow/analyze", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "PRECONDITION_FAILED" {
		t.Fatalf("code = %q", body.Code)
	}
}

func multipartUpload(t *testing.T, url, sessionID, category, fileName string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("category", category); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestUploadThenAnalyzeOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := multipartUpload(t, server.URL+"/api/workflow/upload", "sess-http", "招标文件正文", "tender.pdf", []byte("pdf"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d: %s", resp.StatusCode, raw)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/workflow/analyze", nil)
	req.Header.Set(sessionHeader, "sess-http")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp2.Body)
		t.Fatalf("analyze status = %d: %s", resp2.StatusCode, raw)
	}

	var body struct {
		Report string `json:"report"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Report != "报告" {
		t.Fatalf("report = %q", body.Report)
	}
}

func TestMapErrorUnknownExportFormat(t *testing.T) {
	status, code, _, _ := mapError(fmt.Errorf("render: %w", export.ErrUnknownFormat))
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
	if code != "UNKNOWN_FORMAT" {
		t.Errorf("code = %q, want UNKNOWN_FORMAT", code)
	}
}

func TestUploadUnknownCategoryRejected(t *testing.T) {
	server, _ := newTestServer(t)

	resp := multipartUpload(t, server.URL+"/api/workflow/upload", "", "奇怪类别", "a.pdf", []byte("x"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestStandardsEndpoints(t *testing.T) {
	svc, _ := newTestService(newFakeDataStore(), &fakeAI{}, &fakeParser{content: "GB 50300-2013 标准内容"})
	svc.standards = newFakeCatalog()
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "GB 50300-2013 验收统一标准.pdf")
	_, _ = fw.Write([]byte("standard bytes"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/standards", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("add status = %d: %s", resp.StatusCode, raw)
	}
	var added struct {
		Standard  store.StandardDocument `json:"standard"`
		Duplicate bool                   `json:"duplicate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		t.Fatal(err)
	}
	if added.Standard.Code != "GB 50300-2013" {
		t.Fatalf("code = %q", added.Standard.Code)
	}

	listResp, err := http.Get(server.URL + "/api/standards?category=" + url.QueryEscape("国家标准"))
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	var listed struct {
		Standards []store.StandardDocument `json:"standards"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Standards) != 1 {
		t.Fatalf("listed %d standards", len(listed.Standards))
	}

	statsResp, err := http.Get(server.URL + "/api/standards/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer statsResp.Body.Close()
	var stats store.CategoryStats
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Fatalf("stats total = %d", stats.Total)
	}
}

// fakeCatalog implements the standards surface with in-memory state.
type fakeCatalog struct {
	byHash map[string]store.StandardDocument
	nextID int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byHash: map[string]store.StandardDocument{}}
}

func (f *fakeCatalog) Add(_ context.Context, fileName, name, content string, raw []byte) (standards.AddResult, error) {
	hash := fmt.Sprintf("%x-%d", len(raw), len(f.byHash))
	if name == "" {
		name = fileName
	}
	code := standards.ExtractCode(fileName)
	if code == "" {
		code = standards.ExtractCode(content)
	}
	doc := store.StandardDocument{
		ID:       fmt.Sprintf("std-%d", f.nextID),
		Code:     code,
		Name:     name,
		FileName: fileName,
		FileHash: hash,
		Category: standards.Categorize(code),
	}
	f.nextID++
	f.byHash[hash] = doc
	return standards.AddResult{Standard: doc}, nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (store.StandardDocument, error) {
	for _, d := range f.byHash {
		if d.ID == id {
			return d, nil
		}
	}
	return store.StandardDocument{}, store.ErrNotFound
}

func (f *fakeCatalog) Content(_ context.Context, _ string) (io.ReadCloser, store.StandardDocument, error) {
	return io.NopCloser(bytes.NewReader(nil)), store.StandardDocument{}, nil
}

func (f *fakeCatalog) List(_ context.Context, category string, _ int) ([]store.StandardDocument, error) {
	out := []store.StandardDocument{}
	for _, d := range f.byHash {
		if category == "" || d.Category == category {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchCatalog(_ context.Context, _ string, _ int) ([]store.StandardDocument, error) {
	return nil, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	for hash, d := range f.byHash {
		if d.ID == id {
			delete(f.byHash, hash)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeCatalog) Statistics(_ context.Context) (store.CategoryStats, error) {
	stats := store.CategoryStats{ByCategory: map[string]int{}}
	for _, d := range f.byHash {
		stats.ByCategory[d.Category]++
		stats.Total++
	}
	return stats, nil
}

