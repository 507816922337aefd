package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a project or standard does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateStandard is returned when a standard with the same file
// hash or code is already in the catalog.
type ErrDuplicateStandard struct {
	Existing StandardDocument
}

func (e *ErrDuplicateStandard) Error() string {
	return fmt.Sprintf("standard already exists: %s (%s)", e.Existing.Name, e.Existing.Code)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	files, err := json.Marshal(p.UploadedFiles)
	if err != nil {
		return fmt.Errorf("marshal uploaded files: %w", err)
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	const insert = `
		INSERT INTO projects (name, uploaded_files, analysis_report, evaluation_criteria, generated_response, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, insert,
		p.Name, files, p.AnalysisReport, p.EvaluationCriteria, p.GeneratedResponse, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProjectFiles(ctx context.Context, id string, uploadedFiles map[string]string) error {
	files, err := json.Marshal(uploadedFiles)
	if err != nil {
		return fmt.Errorf("marshal uploaded files: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET uploaded_files=$2, updated_at=NOW() WHERE id=$1
	`, id, files)
	if err != nil {
		return fmt.Errorf("update project files: %w", err)
	}
	return checkAffected(res)
}

// UpdateProjectAnalysis writes the analysis report, the evaluation
// criteria, and the status transition in one statement so a failure
// leaves the project untouched.
func (s *PostgresStore) UpdateProjectAnalysis(ctx context.Context, id, report, criteria string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET analysis_report=$2, evaluation_criteria=$3, status=$4, updated_at=NOW()
		WHERE id=$1
	`, id, report, criteria, StatusAnalyzed)
	if err != nil {
		return fmt.Errorf("update project analysis: %w", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) UpdateProjectResponse(ctx context.Context, id, response string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET generated_response=$2, status=$3, updated_at=NOW()
		WHERE id=$1
	`, id, response, StatusCompleted)
	if err != nil {
		return fmt.Errorf("update project response: %w", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	const query = `
		SELECT id, name, uploaded_files, analysis_report, evaluation_criteria, generated_response, status, created_at, updated_at
		FROM projects WHERE id=$1
	`
	return scanProject(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListProjects(ctx context.Context, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, name, uploaded_files, analysis_report, evaluation_criteria, generated_response, status, created_at, updated_at
		FROM projects ORDER BY updated_at DESC LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

func (s *PostgresStore) SearchProjects(ctx context.Context, name string, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, name, uploaded_files, analysis_report, evaluation_criteria, generated_response, status, created_at, updated_at
		FROM projects WHERE name ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) InsertStandard(ctx context.Context, d *StandardDocument) error {
	if existing, err := s.GetStandardByHash(ctx, d.FileHash); err == nil {
		return &ErrDuplicateStandard{Existing: existing}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if d.Code != "" {
		if existing, err := s.GetStandardByCode(ctx, d.Code); err == nil {
			return &ErrDuplicateStandard{Existing: existing}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	const insert = `
		INSERT INTO standard_documents (code, name, file_name, object_key, file_hash, file_size, category, content_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, insert,
		nullString(d.Code), d.Name, d.FileName, d.ObjectKey, d.FileHash, d.FileSize, d.Category, d.ContentPreview,
	).Scan(&d.ID, &d.UploadedAt, &d.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return &ErrDuplicateStandard{Existing: *d}
		}
		return fmt.Errorf("insert standard: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStandard(ctx context.Context, id string) (StandardDocument, error) {
	return s.standardBy(ctx, "id", id)
}

func (s *PostgresStore) GetStandardByHash(ctx context.Context, hash string) (StandardDocument, error) {
	return s.standardBy(ctx, "file_hash", hash)
}

func (s *PostgresStore) GetStandardByCode(ctx context.Context, code string) (StandardDocument, error) {
	return s.standardBy(ctx, "code", code)
}

func (s *PostgresStore) standardBy(ctx context.Context, column, value string) (StandardDocument, error) {
	query := fmt.Sprintf(`
		SELECT id, code, name, file_name, object_key, file_hash, file_size, category, content_preview, uploaded_at, updated_at
		FROM standard_documents WHERE %s=$1
	`, column)
	return scanStandard(s.db.QueryRowContext(ctx, query, value))
}

func (s *PostgresStore) ListStandards(ctx context.Context, category string, limit int) ([]StandardDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, code, name, file_name, object_key, file_hash, file_size, category, content_preview, uploaded_at, updated_at
		FROM standard_documents
	`
	args := []any{limit}
	if category != "" {
		query += ` WHERE category=$2`
		args = append(args, category)
	}
	query += ` ORDER BY uploaded_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list standards: %w", err)
	}
	defer rows.Close()
	return collectStandards(rows)
}

func (s *PostgresStore) SearchStandards(ctx context.Context, term string, limit int) ([]StandardDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, code, name, file_name, object_key, file_hash, file_size, category, content_preview, uploaded_at, updated_at
		FROM standard_documents
		WHERE code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY uploaded_at DESC LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search standards: %w", err)
	}
	defer rows.Close()
	return collectStandards(rows)
}

func (s *PostgresStore) DeleteStandard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM standard_documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete standard: %w", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) StandardStatistics(ctx context.Context) (CategoryStats, error) {
	stats := CategoryStats{ByCategory: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM standard_documents GROUP BY category
	`)
	if err != nil {
		return stats, fmt.Errorf("standard statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return stats, fmt.Errorf("scan statistics: %w", err)
		}
		stats.ByCategory[category] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var files []byte
	var report, criteria, response sql.NullString
	err := row.Scan(&p.ID, &p.Name, &files, &report, &criteria, &response, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("scan project: %w", err)
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &p.UploadedFiles); err != nil {
			return Project{}, fmt.Errorf("decode uploaded files: %w", err)
		}
	}
	if p.UploadedFiles == nil {
		p.UploadedFiles = map[string]string{}
	}
	p.AnalysisReport = report.String
	p.EvaluationCriteria = criteria.String
	p.GeneratedResponse = response.String
	return p, nil
}

func collectProjects(rows *sql.Rows) ([]Project, error) {
	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanStandard(row rowScanner) (StandardDocument, error) {
	var d StandardDocument
	var code, preview sql.NullString
	err := row.Scan(&d.ID, &code, &d.Name, &d.FileName, &d.ObjectKey, &d.FileHash, &d.FileSize, &d.Category, &preview, &d.UploadedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StandardDocument{}, ErrNotFound
	}
	if err != nil {
		return StandardDocument{}, fmt.Errorf("scan standard: %w", err)
	}
	d.Code = code.String
	d.ContentPreview = preview.String
	return d, nil
}

func collectStandards(rows *sql.Rows) ([]StandardDocument, error) {
	docs := []StandardDocument{}
	for rows.Next() {
		d, err := scanStandard(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
