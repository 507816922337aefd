package store

import "time"

// Project lifecycle states.
const (
	StatusDraft     = "draft"
	StatusAnalyzed  = "analyzed"
	StatusCompleted = "completed"
)

// Project is one bid-review record. UploadedFiles maps upload category to
// the stored filename and is persisted as a JSON column.
type Project struct {
	ID                 string
	Name               string
	UploadedFiles      map[string]string
	AnalysisReport     string
	EvaluationCriteria string
	GeneratedResponse  string
	Status             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StandardDocument is one standards-catalog entry. Its lifecycle is
// independent of projects; deleting a project never touches the catalog.
type StandardDocument struct {
	ID             string
	Code           string
	Name           string
	FileName       string
	ObjectKey      string
	FileHash       string
	FileSize       int64
	Category       string
	ContentPreview string
	UploadedAt     time.Time
	UpdatedAt      time.Time
}

// CategoryStats counts catalog entries per regulatory tier.
type CategoryStats struct {
	Total      int
	ByCategory map[string]int
}
