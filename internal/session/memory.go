package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps workflow state in process memory. It is the default when
// no Redis URL is configured. State is stored as serialized snapshots so a
// caller can never mutate the canonical copy without going through Save.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]byte{}}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	var w Workflow
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	w.normalize()
	return &w, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, w *Workflow) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = raw
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
