package search

import (
	"encoding/json"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
)

func TestNewLinkRecordIDIsStablePerURL(t *testing.T) {
	at := time.Unix(1714550400, 0)
	a := NewLinkRecord("https://example.atlassian.net/browse/ABC-1", "jira", "ABC-1: One", "Bug", at)
	b := NewLinkRecord("https://example.atlassian.net/browse/ABC-1", "jira", "ABC-1: Renamed", "Bug", at)
	c := NewLinkRecord("https://example.atlassian.net/browse/ABC-2", "jira", "ABC-2: Two", "Bug", at)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Regexp(t, `^[a-zA-Z0-9-]+$`, a.ID)
	assert.Equal(t, int64(1714550400), a.ResolvedAt)
}

func TestHitToResultPrefersHighlightedTitle(t *testing.T) {
	raw := func(v any) json.RawMessage {
		data, _ := json.Marshal(v)
		return data
	}
	hit := meili.Hit{
		"url":        raw("https://app.asana.com/0/1/2"),
		"kind":       raw("asana"),
		"title":      raw("Ship v2"),
		"itemType":   raw("AsanaTask"),
		"_formatted": raw(map[string]string{"title": "<mark>Ship</mark> v2"}),
	}

	got := hitToResult(hit)
	assert.Equal(t, Result{
		URL:      "https://app.asana.com/0/1/2",
		Kind:     "asana",
		Title:    "Ship v2",
		ItemType: "AsanaTask",
		Snippet:  "<mark>Ship</mark> v2",
	}, got)
}

func TestServiceWithoutBackendsReturnsEmpty(t *testing.T) {
	svc := NewService(nil, nil)
	resp := svc.Search(Query{Text: "login"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "login", resp.Query)

	svc.IndexLink(LinkRecord{ID: "x"})
	svc.Close()
}

func TestPgFTSBlankQuerySkipsDatabase(t *testing.T) {
	results, total, err := NewPgFTS(nil).Search(Query{Text: "   "})
	assert.NoError(t, err)
	assert.Nil(t, results)
	assert.Zero(t, total)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 20, normalizeLimit(0))
	assert.Equal(t, 5, normalizeLimit(5))
	assert.Equal(t, 100, normalizeLimit(1000))
}
