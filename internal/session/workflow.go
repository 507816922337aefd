// Package session holds the per-session workflow state that threads
// uploaded content, analysis output and generated sections across the three
// phases. The store is the single canonical copy: handlers load, mutate and
// save within one interaction and never keep a private copy across
// interactions.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/outline"
)

var ErrNotFound = errors.New("session not found")

// PreconditionError reports a phase-gate violation. The action is refused
// and no state is mutated.
type PreconditionError struct {
	Action string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s refused: %s", e.Action, e.Reason)
}

// Workflow is the canonical mutable state of one user session.
type Workflow struct {
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name,omitempty"`

	// Category → extracted text / stored filename.
	Contents map[string]string `json:"contents,omitempty"`
	Files    map[string]string `json:"files,omitempty"`
	// Dedup set of already-ingested upload identifiers.
	Processed map[string]bool `json:"processed,omitempty"`

	AnalysisReport     string            `json:"analysis_report,omitempty"`
	EvaluationCriteria string            `json:"evaluation_criteria,omitempty"`
	Outline            *outline.Outline  `json:"outline,omitempty"`
	Sections           map[string]string `json:"sections,omitempty"`
}

// NewWorkflow returns an empty session state with all maps allocated.
func NewWorkflow() *Workflow {
	return &Workflow{
		Contents:  map[string]string{},
		Files:     map[string]string{},
		Processed: map[string]bool{},
		Sections:  map[string]string{},
	}
}

// normalize re-allocates nil maps after JSON round-trips.
func (w *Workflow) normalize() {
	if w.Contents == nil {
		w.Contents = map[string]string{}
	}
	if w.Files == nil {
		w.Files = map[string]string{}
	}
	if w.Processed == nil {
		w.Processed = map[string]bool{}
	}
	if w.Sections == nil {
		w.Sections = map[string]string{}
	}
}

// HasContent reports whether at least one category carries non-empty text.
func (w *Workflow) HasContent() bool {
	for _, content := range w.Contents {
		if strings.TrimSpace(content) != "" {
			return true
		}
	}
	return false
}

// CanAnalyze gates the structured-analysis phase.
func (w *Workflow) CanAnalyze() error {
	if !w.HasContent() {
		return &PreconditionError{Action: "analysis", Reason: "no uploaded document content"}
	}
	return nil
}

// CanExtractCriteria gates criteria extraction.
func (w *Workflow) CanExtractCriteria() error {
	if strings.TrimSpace(w.AnalysisReport) == "" {
		return &PreconditionError{Action: "criteria extraction", Reason: "analysis report not available"}
	}
	return nil
}

// CanOutline gates outline generation.
func (w *Workflow) CanOutline() error {
	if strings.TrimSpace(w.EvaluationCriteria) == "" {
		return &PreconditionError{Action: "outline generation", Reason: "evaluation criteria not available"}
	}
	return nil
}

// CanGenerateSection gates per-section generation and resolves the section.
func (w *Workflow) CanGenerateSection(title string) (outline.FlatSection, error) {
	if w.Outline == nil {
		return outline.FlatSection{}, &PreconditionError{Action: "section generation", Reason: "outline not available"}
	}
	if w.Outline.Unstructured {
		return outline.FlatSection{}, &PreconditionError{Action: "section generation", Reason: "outline is unstructured"}
	}
	section, err := w.Outline.Find(title)
	if err != nil {
		return outline.FlatSection{}, &PreconditionError{Action: "section generation", Reason: err.Error()}
	}
	return section, nil
}

// Store persists workflow state per session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Workflow, error)
	Save(ctx context.Context, sessionID string, w *Workflow) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
