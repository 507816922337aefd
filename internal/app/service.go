package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ai"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/blob"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/config"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/export"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ingest"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/outline"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/search"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/session"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/standards"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

// UploadCategory describes one slot of the bidding-document manifest.
type UploadCategory struct {
	Name       string
	Core       bool
	Extensions []string
}

// Two core bidding-document slots plus four attachment slots. The CAD slot
// accepts dwg files, which are stored but never parsed for text.
var uploadCategories = []UploadCategory{
	{Name: "招标文件正文", Core: true, Extensions: []string{".pdf", ".docx", ".doc", ".xlsx", ".xls"}},
	{Name: "技术要求附件", Core: true, Extensions: []string{".pdf", ".docx", ".doc", ".xlsx", ".xls"}},
	{Name: "工程量清单", Extensions: []string{".pdf", ".xlsx", ".xls", ".docx", ".doc"}},
	{Name: "评审标准附件", Extensions: []string{".pdf", ".docx", ".doc", ".xlsx", ".xls"}},
	{Name: "施工设计说明", Extensions: []string{".pdf", ".docx", ".doc", ".dwg"}},
	{Name: "方案建议书附件", Extensions: []string{".pdf", ".docx", ".doc", ".xlsx", ".xls"}},
}

func categoryByName(name string) (UploadCategory, bool) {
	for _, c := range uploadCategories {
		if c.Name == name {
			return c, true
		}
	}
	return UploadCategory{}, false
}

func categoryNames() []string {
	names := make([]string, len(uploadCategories))
	for i, c := range uploadCategories {
		names[i] = c.Name
	}
	return names
}

type dataStore interface {
	CreateProject(ctx context.Context, p *store.Project) error
	UpdateProjectFiles(ctx context.Context, id string, uploadedFiles map[string]string) error
	UpdateProjectAnalysis(ctx context.Context, id, report, criteria string) error
	UpdateProjectResponse(ctx context.Context, id, response string) error
	GetProject(ctx context.Context, id string) (store.Project, error)
	ListProjects(ctx context.Context, limit int) ([]store.Project, error)
	SearchProjects(ctx context.Context, name string, limit int) ([]store.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

type aiOrchestrator interface {
	AnalyzeDocuments(ctx context.Context, categories []string, contents map[string]string) (string, error)
	ExtractCriteria(ctx context.Context, analysisReport string) (string, error)
	GenerateOutline(ctx context.Context, analysisReport, criteria string) (outline.Outline, error)
	GenerateSection(ctx context.Context, section outline.FlatSection, analysisReport, criteria string) (string, error)
}

type docParser interface {
	Parse(path string) (ingest.Result, error)
}

type standardsCatalog interface {
	Add(ctx context.Context, fileName, name, content string, raw []byte) (standards.AddResult, error)
	Get(ctx context.Context, id string) (store.StandardDocument, error)
	Content(ctx context.Context, id string) (io.ReadCloser, store.StandardDocument, error)
	List(ctx context.Context, category string, limit int) ([]store.StandardDocument, error)
	SearchCatalog(ctx context.Context, term string, limit int) ([]store.StandardDocument, error)
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context) (store.CategoryStats, error)
}

type catalogSearcher interface {
	Search(q search.Query) search.Response
}

type exporter interface {
	Export(doc export.Document, format export.Format) (*export.Result, error)
}

// Service orchestrates the review workflow: session state, ingestion, AI
// phases, persistence and export. Constructed once in main with every
// dependency injected.
type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	blobs     blob.Store
	parser    docParser
	ai        aiOrchestrator
	export    exporter
	standards standardsCatalog
	searcher  catalogSearcher
	ping      func(ctx context.Context) error
}

type ServiceDeps struct {
	Config    config.Config
	Store     dataStore
	Sessions  session.Store
	Blobs     blob.Store
	Parser    docParser
	AI        aiOrchestrator
	Export    exporter
	Standards standardsCatalog
	Searcher  catalogSearcher
	Ping      func(ctx context.Context) error
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		cfg:       deps.Config,
		store:     deps.Store,
		sessions:  deps.Sessions,
		blobs:     deps.Blobs,
		parser:    deps.Parser,
		ai:        deps.AI,
		export:    deps.Export,
		standards: deps.Standards,
		searcher:  deps.Searcher,
		ping:      deps.Ping,
	}
}

// Ping reports backend connectivity for the readiness endpoint.
func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// loadSession returns the canonical workflow state for the session,
// starting a fresh one for unknown ids.
func (s *Service) loadSession(ctx context.Context, sessionID string) (*session.Workflow, error) {
	w, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return session.NewWorkflow(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return w, nil
}

// UploadSummary reports the outcome of one document upload.
type UploadSummary struct {
	Category   string          `json:"category"`
	FileName   string          `json:"fileName"`
	StoredKey  string          `json:"storedKey"`
	Parsed     bool            `json:"parsed"`
	Duplicate  bool            `json:"duplicate"`
	Meta       ingest.Metadata `json:"meta"`
	ParseError string          `json:"parseError,omitempty"`
}

// UploadDocument validates, stores and ingests one uploaded file, then
// records its content and manifest entry in the session. A file already
// seen in this session (same category, name and size) is skipped. Parse
// failures keep the stored file but report the error so the rest of a
// batch is unaffected.
func (s *Service) UploadDocument(ctx context.Context, sessionID, category, fileName string, data []byte) (UploadSummary, error) {
	cat, ok := categoryByName(category)
	if !ok {
		return UploadSummary{}, domainError(http.StatusUnprocessableEntity, "UNKNOWN_CATEGORY",
			"unknown upload category", map[string]any{"allowed": categoryNames()})
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !extAllowed(cat, ext) {
		return UploadSummary{}, domainError(http.StatusUnprocessableEntity, "UNSUPPORTED_EXTENSION",
			fmt.Sprintf("%s does not accept %s files", category, ext),
			map[string]any{"allowed": cat.Extensions})
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(data)) > s.cfg.MaxUploadBytes {
		return UploadSummary{}, domainError(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
			"file exceeds upload limit", nil)
	}
	if len(data) == 0 {
		return UploadSummary{}, domainError(http.StatusUnprocessableEntity, "EMPTY_FILE", "file is empty", nil)
	}

	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return UploadSummary{}, err
	}

	uploadID := fmt.Sprintf("%s_%s_%d", category, fileName, len(data))
	if w.Processed[uploadID] {
		return UploadSummary{Category: category, FileName: fileName, Duplicate: true, Parsed: w.Contents[category] != ""}, nil
	}

	key := fmt.Sprintf("uploads/%s_%s%s", category, uuid.NewString()[:8], ext)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return UploadSummary{}, fmt.Errorf("store upload: %w", err)
	}

	summary := UploadSummary{Category: category, FileName: fileName, StoredKey: key}

	result, perr := s.parseBytes(fileName, data)
	switch {
	case perr == nil:
		summary.Parsed = true
		summary.Meta = result.Meta
		w.Contents[category] = result.Content
	case errors.Is(perr, ingest.ErrNotParsed):
		// CAD drawings are kept in the manifest without text content.
		w.Contents[category] = ""
	default:
		summary.ParseError = perr.Error()
		w.Contents[category] = ""
	}

	w.Files[category] = key
	w.Processed[uploadID] = true
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return UploadSummary{}, fmt.Errorf("save session: %w", err)
	}
	return summary, nil
}

// parseBytes runs the ingestion pipeline over in-memory content. The
// parsers work on files, so the bytes go through a temp file.
func (s *Service) parseBytes(fileName string, data []byte) (ingest.Result, error) {
	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(fileName)))
	if err != nil {
		return ingest.Result{}, fmt.Errorf("temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ingest.Result{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ingest.Result{}, fmt.Errorf("close temp file: %w", err)
	}
	return s.parser.Parse(path)
}

func extAllowed(cat UploadCategory, ext string) bool {
	for _, allowed := range cat.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SaveProject creates or updates the persistent project record from the
// session manifest.
func (s *Service) SaveProject(ctx context.Context, sessionID, name string) (store.Project, error) {
	if strings.TrimSpace(name) == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "NAME_REQUIRED", "project name is required", nil)
	}

	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return store.Project{}, err
	}
	if len(w.Files) == 0 {
		return store.Project{}, &session.PreconditionError{Action: "save project", Reason: "no files uploaded"}
	}

	w.Name = name
	if w.ProjectID == "" {
		project := store.Project{Name: name, UploadedFiles: w.Files}
		if err := s.store.CreateProject(ctx, &project); err != nil {
			return store.Project{}, err
		}
		w.ProjectID = project.ID
		if err := s.sessions.Save(ctx, sessionID, w); err != nil {
			return store.Project{}, fmt.Errorf("save session: %w", err)
		}
		return project, nil
	}

	if err := s.store.UpdateProjectFiles(ctx, w.ProjectID, w.Files); err != nil {
		return store.Project{}, err
	}
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return store.Project{}, fmt.Errorf("save session: %w", err)
	}
	return s.store.GetProject(ctx, w.ProjectID)
}

// AnalyzeResult carries the analysis report plus the criteria-extraction
// outcome. Criteria extraction failing does not invalidate the report; the
// error is reported so the client can retry via ExtractCriteria.
type AnalyzeResult struct {
	Report        string `json:"report"`
	Criteria      string `json:"criteria,omitempty"`
	CriteriaError string `json:"criteriaError,omitempty"`
}

// Analyze runs the structured analysis over every uploaded document and
// then attempts criteria extraction. The report is written to the session
// and the project in the same call or not at all.
func (s *Service) Analyze(ctx context.Context, sessionID string) (AnalyzeResult, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	if err := w.CanAnalyze(); err != nil {
		return AnalyzeResult{}, err
	}

	report, err := s.ai.AnalyzeDocuments(ctx, categoryNames(), w.Contents)
	if err != nil {
		return AnalyzeResult{}, err
	}

	result := AnalyzeResult{Report: report}
	criteria, cerr := s.ai.ExtractCriteria(ctx, report)
	if cerr != nil {
		// Extraction failing must not discard criteria from an earlier
		// run; they stay valid until a successful extraction replaces them.
		result.CriteriaError = cerr.Error()
		criteria = w.EvaluationCriteria
	}
	result.Criteria = criteria

	w.AnalysisReport = report
	w.EvaluationCriteria = criteria
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return AnalyzeResult{}, fmt.Errorf("save session: %w", err)
	}

	if w.ProjectID != "" {
		if err := s.store.UpdateProjectAnalysis(ctx, w.ProjectID, report, criteria); err != nil {
			return AnalyzeResult{}, err
		}
	}
	return result, nil
}

// ExtractCriteria re-runs criteria extraction against the stored report.
func (s *Service) ExtractCriteria(ctx context.Context, sessionID string) (string, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := w.CanExtractCriteria(); err != nil {
		return "", err
	}

	criteria, err := s.ai.ExtractCriteria(ctx, w.AnalysisReport)
	if err != nil {
		return "", err
	}

	w.EvaluationCriteria = criteria
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if w.ProjectID != "" {
		if err := s.store.UpdateProjectAnalysis(ctx, w.ProjectID, w.AnalysisReport, criteria); err != nil {
			return "", err
		}
	}
	return criteria, nil
}

// GenerateOutline produces the proposal outline from report and criteria.
func (s *Service) GenerateOutline(ctx context.Context, sessionID string) (outline.Outline, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return outline.Outline{}, err
	}
	if err := w.CanOutline(); err != nil {
		return outline.Outline{}, err
	}

	ol, err := s.ai.GenerateOutline(ctx, w.AnalysisReport, w.EvaluationCriteria)
	if err != nil {
		return outline.Outline{}, err
	}

	w.Outline = &ol
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return outline.Outline{}, fmt.Errorf("save session: %w", err)
	}
	return ol, nil
}

// GenerateSection produces one proposal section identified by its
// flattened outline title.
func (s *Service) GenerateSection(ctx context.Context, sessionID, title string) (string, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	section, err := w.CanGenerateSection(title)
	if err != nil {
		return "", err
	}

	text, err := s.ai.GenerateSection(ctx, section, w.AnalysisReport, w.EvaluationCriteria)
	if err != nil {
		return "", err
	}

	w.Sections[title] = text
	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return text, nil
}

// SaveResponse assembles the generated sections into the final proposal
// text and writes it to the project, moving it to completed.
func (s *Service) SaveResponse(ctx context.Context, sessionID string) (store.Project, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return store.Project{}, err
	}
	if w.ProjectID == "" {
		return store.Project{}, &session.PreconditionError{Action: "save response", Reason: "project not saved yet"}
	}
	doc, err := s.assembleDocument(w)
	if err != nil {
		return store.Project{}, err
	}

	res, err := s.export.Export(doc, export.FormatMarkdown)
	if err != nil {
		return store.Project{}, err
	}
	if err := s.store.UpdateProjectResponse(ctx, w.ProjectID, string(res.Data)); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, w.ProjectID)
}

// Export renders the current proposal in the requested format. Sections
// without generated text are marked pending, never filled in.
func (s *Service) Export(ctx context.Context, sessionID string, format export.Format) (*export.Result, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.assembleDocument(w)
	if err != nil {
		return nil, err
	}
	return s.export.Export(doc, format)
}

func (s *Service) assembleDocument(w *session.Workflow) (export.Document, error) {
	if w.Outline == nil || w.Outline.Unstructured {
		return export.Document{}, &session.PreconditionError{Action: "export", Reason: "outline not available"}
	}

	name := w.Name
	if strings.TrimSpace(name) == "" {
		name = "投标方案"
	}

	doc := export.Document{ProjectName: name, GeneratedAt: time.Now()}
	for _, sec := range w.Outline.Flatten() {
		body, ok := w.Sections[sec.Title]
		doc.Sections = append(doc.Sections, export.Section{
			Title:     sec.Title,
			WordCount: sec.WordCount,
			Body:      body,
			Pending:   !ok || strings.TrimSpace(body) == "",
		})
	}
	return doc, nil
}

// SessionState is the workflow summary returned to clients.
type SessionState struct {
	ProjectID     string            `json:"projectId,omitempty"`
	Name          string            `json:"name,omitempty"`
	Files         map[string]string `json:"files"`
	HasAnalysis   bool              `json:"hasAnalysis"`
	HasCriteria   bool              `json:"hasCriteria"`
	Outline       *outline.Outline  `json:"outline,omitempty"`
	SectionTitles []string          `json:"generatedSections"`
}

// SessionSummary reports where the workflow currently stands.
func (s *Service) SessionSummary(ctx context.Context, sessionID string) (SessionState, error) {
	w, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}
	state := SessionState{
		ProjectID:     w.ProjectID,
		Name:          w.Name,
		Files:         w.Files,
		HasAnalysis:   strings.TrimSpace(w.AnalysisReport) != "",
		HasCriteria:   strings.TrimSpace(w.EvaluationCriteria) != "",
		Outline:       w.Outline,
		SectionTitles: []string{},
	}
	if w.Outline != nil && !w.Outline.Unstructured {
		for _, sec := range w.Outline.Flatten() {
			if strings.TrimSpace(w.Sections[sec.Title]) != "" {
				state.SectionTitles = append(state.SectionTitles, sec.Title)
			}
		}
	}
	return state, nil
}

// LoadProject hydrates the session from a stored project record and
// re-parses the stored files so the workflow can resume.
func (s *Service) LoadProject(ctx context.Context, sessionID, projectID string) (SessionState, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return SessionState{}, err
	}

	w := session.NewWorkflow()
	w.ProjectID = project.ID
	w.Name = project.Name
	w.AnalysisReport = project.AnalysisReport
	w.EvaluationCriteria = project.EvaluationCriteria

	for category, key := range project.UploadedFiles {
		w.Files[category] = key
		content, err := s.reparseStored(ctx, key)
		if err != nil {
			// A single unreadable file must not block loading the rest.
			continue
		}
		w.Contents[category] = content
	}

	if err := s.sessions.Save(ctx, sessionID, w); err != nil {
		return SessionState{}, fmt.Errorf("save session: %w", err)
	}
	return s.SessionSummary(ctx, sessionID)
}

func (s *Service) reparseStored(ctx context.Context, key string) (string, error) {
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "stored-*"+strings.ToLower(filepath.Ext(key)))
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.ReadFrom(rc); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	result, err := s.parser.Parse(path)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// ResetSession discards the workflow state for the session.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// ListProjects returns recent projects, optionally filtered by name.
func (s *Service) ListProjects(ctx context.Context, query string, limit int) ([]store.Project, error) {
	if strings.TrimSpace(query) != "" {
		return s.store.SearchProjects(ctx, query, limit)
	}
	return s.store.ListProjects(ctx, limit)
}

// GetProject returns one project record.
func (s *Service) GetProject(ctx context.Context, id string) (store.Project, error) {
	return s.store.GetProject(ctx, id)
}

// DeleteProject removes the project record and its uploaded files.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	for _, key := range project.UploadedFiles {
		_ = s.blobs.Delete(ctx, key)
	}
	return nil
}

// AddStandard ingests a standard document into the catalog. Text extraction
// feeds the preview and code detection; files that cannot be parsed are
// still cataloged with an empty preview.
func (s *Service) AddStandard(ctx context.Context, fileName, name string, data []byte) (standards.AddResult, error) {
	if len(data) == 0 {
		return standards.AddResult{}, domainError(http.StatusUnprocessableEntity, "EMPTY_FILE", "file is empty", nil)
	}
	content := ""
	if result, err := s.parseBytes(fileName, data); err == nil {
		content = result.Content
	}
	return s.standards.Add(ctx, fileName, name, content, data)
}

func (s *Service) ListStandards(ctx context.Context, category string, limit int) ([]store.StandardDocument, error) {
	return s.standards.List(ctx, category, limit)
}

// SearchStandards consults the search facade when available and falls back
// to catalog substring matching.
func (s *Service) SearchStandards(ctx context.Context, term, category string, limit int) (search.Response, error) {
	if s.searcher != nil {
		return s.searcher.Search(search.Query{Text: term, FilterCategory: category, Limit: limit}), nil
	}
	docs, err := s.standards.SearchCatalog(ctx, term, limit)
	if err != nil {
		return search.Response{}, err
	}
	resp := search.Response{Query: term, Results: []search.Result{}}
	for _, d := range docs {
		if category != "" && d.Category != category {
			continue
		}
		resp.Results = append(resp.Results, search.Result{
			ID: d.ID, Code: d.Code, Name: d.Name, Category: d.Category, Snippet: d.ContentPreview,
		})
	}
	resp.Total = len(resp.Results)
	return resp, nil
}

func (s *Service) GetStandard(ctx context.Context, id string) (store.StandardDocument, error) {
	return s.standards.Get(ctx, id)
}

func (s *Service) StandardContent(ctx context.Context, id string) (io.ReadCloser, store.StandardDocument, error) {
	return s.standards.Content(ctx, id)
}

func (s *Service) DeleteStandard(ctx context.Context, id string) error {
	return s.standards.Delete(ctx, id)
}

func (s *Service) StandardStatistics(ctx context.Context) (store.CategoryStats, error) {
	return s.standards.Statistics(ctx)
}

// mapAIError converts provider failures to domain errors with stable codes.
func mapAIError(err error) *DomainError {
	switch {
	case errors.Is(err, ai.ErrAuth):
		return domainError(http.StatusBadGateway, "AI_AUTH", "AI provider rejected credentials", nil)
	case errors.Is(err, ai.ErrRateLimit):
		return domainError(http.StatusTooManyRequests, "AI_RATE_LIMIT", "AI provider rate limit hit", nil)
	case errors.Is(err, ai.ErrTimeout):
		return domainError(http.StatusGatewayTimeout, "AI_TIMEOUT", "AI provider timed out", nil)
	case errors.Is(err, ai.ErrMalformed):
		return domainError(http.StatusBadGateway, "AI_MALFORMED", "AI provider returned an unusable response", nil)
	default:
		return nil
	}
}
