package standards

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/blob"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/search"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

const previewChars = 500

// catalogStore is the subset of the persistence layer the catalog needs.
type catalogStore interface {
	InsertStandard(ctx context.Context, d *store.StandardDocument) error
	GetStandard(ctx context.Context, id string) (store.StandardDocument, error)
	ListStandards(ctx context.Context, category string, limit int) ([]store.StandardDocument, error)
	SearchStandards(ctx context.Context, term string, limit int) ([]store.StandardDocument, error)
	DeleteStandard(ctx context.Context, id string) error
	StandardStatistics(ctx context.Context) (store.CategoryStats, error)
}

// indexer pushes catalog changes into the search layer.
type indexer interface {
	IndexStandard(rec search.StandardRecord)
	DeleteStandard(id string)
}

// Service manages the standards catalog: blob content, catalog rows, and
// the search index.
type Service struct {
	store catalogStore
	blobs blob.Store
	index indexer
}

func NewService(st catalogStore, blobs blob.Store, index indexer) *Service {
	return &Service{store: st, blobs: blobs, index: index}
}

// AddResult reports the outcome of an Add call. Duplicate is set when the
// file was already in the catalog; the existing entry is returned and no
// new row or object is written.
type AddResult struct {
	Standard  store.StandardDocument
	Duplicate bool
}

// Add stores a standard document. The file content is hashed so the same
// file uploaded twice is reported as a duplicate rather than stored again.
func (s *Service) Add(ctx context.Context, fileName, name, content string, raw []byte) (AddResult, error) {
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(fileName, extOf(fileName))
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	code := ExtractCode(fileName)
	if code == "" {
		code = ExtractCode(firstRunes(content, 2000))
	}

	doc := store.StandardDocument{
		Code:           code,
		Name:           name,
		FileName:       fileName,
		ObjectKey:      "standards/" + hash + extOf(fileName),
		FileHash:       hash,
		FileSize:       int64(len(raw)),
		Category:       Categorize(code),
		ContentPreview: firstRunes(content, previewChars),
	}

	if err := s.blobs.Put(ctx, doc.ObjectKey, bytes.NewReader(raw), int64(len(raw))); err != nil {
		return AddResult{}, fmt.Errorf("store standard file: %w", err)
	}

	if err := s.store.InsertStandard(ctx, &doc); err != nil {
		var dup *store.ErrDuplicateStandard
		if errors.As(err, &dup) {
			// Existing object already covers the content; drop ours if the
			// key differs to avoid orphaned blobs.
			if dup.Existing.ObjectKey != doc.ObjectKey {
				if derr := s.blobs.Delete(ctx, doc.ObjectKey); derr != nil {
					log.Printf("standards: cleanup duplicate object %s: %v", doc.ObjectKey, derr)
				}
			}
			return AddResult{Standard: dup.Existing, Duplicate: true}, nil
		}
		if derr := s.blobs.Delete(ctx, doc.ObjectKey); derr != nil {
			log.Printf("standards: cleanup object %s: %v", doc.ObjectKey, derr)
		}
		return AddResult{}, err
	}

	if s.index != nil {
		s.index.IndexStandard(search.StandardRecord{
			ID:       doc.ID,
			Code:     doc.Code,
			Name:     doc.Name,
			Category: doc.Category,
			Preview:  doc.ContentPreview,
		})
	}
	return AddResult{Standard: doc}, nil
}

// Get returns a catalog entry by ID.
func (s *Service) Get(ctx context.Context, id string) (store.StandardDocument, error) {
	return s.store.GetStandard(ctx, id)
}

// Content streams the stored file for a catalog entry.
func (s *Service) Content(ctx context.Context, id string) (io.ReadCloser, store.StandardDocument, error) {
	doc, err := s.store.GetStandard(ctx, id)
	if err != nil {
		return nil, store.StandardDocument{}, err
	}
	rc, err := s.blobs.Get(ctx, doc.ObjectKey)
	if err != nil {
		return nil, store.StandardDocument{}, fmt.Errorf("read standard file: %w", err)
	}
	return rc, doc, nil
}

// List returns catalog entries, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string, limit int) ([]store.StandardDocument, error) {
	return s.store.ListStandards(ctx, category, limit)
}

// SearchCatalog matches catalog entries by code or name substring.
func (s *Service) SearchCatalog(ctx context.Context, term string, limit int) ([]store.StandardDocument, error) {
	return s.store.SearchStandards(ctx, term, limit)
}

// Delete removes the catalog row, the stored file, and the search entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetStandard(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStandard(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.ObjectKey); err != nil {
		log.Printf("standards: delete object %s: %v", doc.ObjectKey, err)
	}
	if s.index != nil {
		s.index.DeleteStandard(id)
	}
	return nil
}

// Statistics reports catalog totals grouped by regulatory tier.
func (s *Service) Statistics(ctx context.Context) (store.CategoryStats, error) {
	return s.store.StandardStatistics(ctx)
}

func extOf(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		return strings.ToLower(fileName[i:])
	}
	return ""
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
