package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres substring matching.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

var (
	_ Searcher = (*Meili)(nil)
	_ Searcher = (*PgSearch)(nil)
	_ Indexer  = (*Meili)(nil)
)

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search walks the backends in preference order, skipping any that is
// unhealthy or errors, so Meilisearch trouble degrades to Postgres instead
// of failing the request.
func (s *Service) Search(q Query) Response {
	for _, backend := range s.backends() {
		if !backend.Healthy() {
			continue
		}
		results, total, err := backend.Search(q)
		if err != nil {
			log.Printf("search: backend error, trying next: %v", err)
			continue
		}
		return Response{Results: nonNil(results), Total: total, Query: q.Text}
	}
	return Response{Results: []Result{}, Total: 0, Query: q.Text}
}

func (s *Service) backends() []Searcher {
	var backends []Searcher
	if s.meili != nil {
		backends = append(backends, s.meili)
	}
	if s.pg != nil {
		backends = append(backends, s.pg)
	}
	return backends
}

// IndexStandard indexes a standard (fire-and-forget to Meilisearch).
func (s *Service) IndexStandard(rec StandardRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexStandard(rec); err != nil {
			log.Printf("search: index standard %s: %v", rec.ID, err)
		}
	}()
}

// DeleteStandard removes a standard from the search index (fire-and-forget).
func (s *Service) DeleteStandard(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteStandard(id); err != nil {
			log.Printf("search: delete standard %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads every standard from Postgres and pushes the
// catalog into Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	records, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexStandards(records); err != nil {
		log.Printf("search: reindex standards: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
