package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/export"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ingest"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/session"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

const sessionHeader = "X-Session-ID"

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "workflow":
		s.handleWorkflow(w, r, parts[2:])
	case "projects":
		s.handleProjects(w, r, parts[2:])
	case "standards":
		s.handleStandards(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// sessionID reads the workflow session from the X-Session-ID header,
// generating and echoing a fresh one when absent.
func (s *HTTPServer) sessionID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(sessionHeader, id)
	return id
}

func (s *HTTPServer) handleWorkflow(w http.ResponseWriter, r *http.Request, parts []string) {
	sessionID := s.sessionID(w, r)

	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		state, err := s.service.SessionSummary(r.Context(), sessionID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	switch {
	case r.Method == http.MethodPost && parts[0] == "upload":
		s.handleUpload(w, r, sessionID)

	case r.Method == http.MethodPost && parts[0] == "project":
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		project, err := s.service.SaveProject(r.Context(), sessionID, body.Name)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)

	case r.Method == http.MethodPost && parts[0] == "analyze":
		result, err := s.service.Analyze(r.Context(), sessionID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodPost && parts[0] == "criteria":
		criteria, err := s.service.ExtractCriteria(r.Context(), sessionID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"criteria": criteria})

	case r.Method == http.MethodPost && parts[0] == "outline":
		ol, err := s.service.GenerateOutline(r.Context(), sessionID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ol)

	case r.Method == http.MethodPost && parts[0] == "sections":
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
			return
		}
		text, err := s.service.GenerateSection(r.Context(), sessionID, body.Title)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"title": body.Title, "content": text})

	case r.Method == http.MethodPost && parts[0] == "response":
		project, err := s.service.SaveResponse(r.Context(), sessionID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)

	case r.Method == http.MethodGet && parts[0] == "export":
		format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = export.FormatMarkdown
		}
		result, err := s.service.Export(r.Context(), sessionID, format)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case r.Method == http.MethodPost && parts[0] == "load":
		var body struct {
			ProjectID string `json:"projectId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.ProjectID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId is required", nil)
			return
		}
		state, err := s.service.LoadProject(r.Context(), sessionID, body.ProjectID)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	case r.Method == http.MethodPost && parts[0] == "reset":
		if err := s.service.ResetSession(r.Context(), sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form expected", nil)
		return
	}
	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "category is required", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
		return
	}

	summary, err := s.service.UploadDocument(r.Context(), sessionID, category, header.Filename, data)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		limit := queryInt(r, "limit", 50)
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		projects, err := s.service.ListProjects(r.Context(), query, limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})

	case r.Method == http.MethodGet && len(parts) == 1:
		project, err := s.service.GetProject(r.Context(), parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)

	case r.Method == http.MethodDelete && len(parts) == 1:
		if err := s.service.DeleteProject(r.Context(), parts[0]); err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleStandards(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 0:
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form expected", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
			return
		}
		name := strings.TrimSpace(r.FormValue("name"))
		result, err := s.service.AddStandard(r.Context(), header.Filename, name, data)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"standard": result.Standard, "duplicate": result.Duplicate})

	case r.Method == http.MethodGet && len(parts) == 0:
		category := strings.TrimSpace(r.URL.Query().Get("category"))
		limit := queryInt(r, "limit", 100)
		docs, err := s.service.ListStandards(r.Context(), category, limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"standards": docs})

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "search":
		term := strings.TrimSpace(r.URL.Query().Get("q"))
		category := strings.TrimSpace(r.URL.Query().Get("category"))
		limit := queryInt(r, "limit", 20)
		resp, err := s.service.SearchStandards(r.Context(), term, category, limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "stats":
		stats, err := s.service.StandardStatistics(r.Context())
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)

	case r.Method == http.MethodGet && len(parts) == 1:
		doc, err := s.service.GetStandard(r.Context(), parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "content":
		rc, doc, err := s.service.StandardContent(r.Context(), parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", doc.FileName))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)

	case r.Method == http.MethodDelete && len(parts) == 1:
		if err := s.service.DeleteStandard(r.Context(), parts[0]); err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()[:8]
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+sessionHeader)
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", sessionHeader)
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var precondition *session.PreconditionError
	if errors.As(err, &precondition) {
		return http.StatusConflict, "PRECONDITION_FAILED", precondition.Error(), nil
	}
	var parseErr *ingest.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusUnprocessableEntity, "PARSE_FAILED", parseErr.Error(), nil
	}
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT", "unsupported file format", nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, export.ErrNoSections) {
		return http.StatusConflict, "NOTHING_TO_EXPORT", "no sections to export", nil
	}
	if errors.Is(err, export.ErrUnknownFormat) {
		return http.StatusUnprocessableEntity, "UNKNOWN_FORMAT", "unknown export format", nil
	}
	if aiErr := mapAIError(err); aiErr != nil {
		return aiErr.Status, aiErr.Code, aiErr.Message, aiErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
