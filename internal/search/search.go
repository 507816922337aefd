package search

// StandardRecord is the data we index for a standard document.
type StandardRecord struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Preview  string `json:"preview"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request against the standards catalog.
type Query struct {
	Text           string
	FilterCategory string // empty = all categories
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over the catalog.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push standards into a search index.
type Indexer interface {
	IndexStandard(rec StandardRecord) error
	DeleteStandard(id string) error
}
