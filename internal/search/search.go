// Package search finds previously resolved links by title or URL.
package search

import (
	"time"

	"github.com/google/uuid"
)

// Result is a single search hit returned to the caller.
type Result struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	ItemType string `json:"itemType"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Kind   string // empty = jira and asana
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// LinkRecord is the data we index for a resolved link.
type LinkRecord struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	ItemType   string `json:"itemType"`
	ResolvedAt int64  `json:"resolvedAt"`
}

// NewLinkRecord derives a stable index id from url, since Meilisearch ids
// may not contain the characters URLs do.
func NewLinkRecord(url, kind, title, itemType string, resolvedAt time.Time) LinkRecord {
	return LinkRecord{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String(),
		URL:        url,
		Kind:       kind,
		Title:      title,
		ItemType:   itemType,
		ResolvedAt: resolvedAt.Unix(),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
