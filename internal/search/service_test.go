package search

import "testing"

func TestSearchWithoutBackendsReturnsEmptyResponse(t *testing.T) {
	svc := NewService(nil, nil)

	resp := svc.Search(Query{Text: "GB 50300"})
	if resp.Results == nil {
		t.Fatal("results must be an empty slice, not nil")
	}
	if len(resp.Results) != 0 || resp.Total != 0 {
		t.Errorf("got %d results (total %d), want none", len(resp.Results), resp.Total)
	}
	if resp.Query != "GB 50300" {
		t.Errorf("query echo = %q", resp.Query)
	}
}
