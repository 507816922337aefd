package search

import (
	"context"
	"database/sql"
	"strings"
)

// PgSearch implements Searcher with plain ILIKE matching against the
// standards table. Chinese catalog names do not tokenize well under the
// built-in text search configurations, so substring matching is the
// reliable fallback when Meilisearch is absent.
type PgSearch struct {
	db *sql.DB
}

// NewPgSearch creates a PostgreSQL-backed searcher.
func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search matches the query text against standard codes, names, and
// content previews.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, COALESCE(code, ''), name, category,
			COALESCE(SUBSTRING(content_preview FOR 200), ''),
			COUNT(*) OVER ()
		FROM standard_documents
		WHERE (code ILIKE '%' || $1 || '%'
			OR name ILIKE '%' || $1 || '%'
			OR content_preview ILIKE '%' || $1 || '%')
	`
	args := []any{q.Text}
	if q.FilterCategory != "" {
		query += ` AND category = $4`
		args = append(args, limit, offset, q.FilterCategory)
	} else {
		args = append(args, limit, offset)
	}
	query += ` ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`

	rows, err := p.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Category, &r.Snippet, &total); err != nil {
			return nil, 0, err
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords reads every standard from Postgres for reindexing.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]StandardRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(code, ''), name, category, COALESCE(SUBSTRING(content_preview FOR 500), '')
		FROM standard_documents
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StandardRecord
	for rows.Next() {
		var rec StandardRecord
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.Name, &rec.Category, &rec.Preview); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
