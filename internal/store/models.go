package store

import "time"

// Resolution is the history row for one resolved link.
type Resolution struct {
	URL             string    `json:"url"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	ItemType        string    `json:"itemType"`
	Authoritative   bool      `json:"authoritative"`
	NeedsAuth       bool      `json:"needsAuth"`
	ResolveCount    int       `json:"resolveCount"`
	FirstResolvedAt time.Time `json:"firstResolvedAt"`
	ResolvedAt      time.Time `json:"resolvedAt"`
}
