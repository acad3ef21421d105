package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; the history endpoints need Postgres anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches resolved_links.fts with plainto_tsquery, ranked by ts_rank.
// The simple configuration keeps issue keys and task ids intact.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `FROM resolved_links, plainto_tsquery('simple', $1) query
		WHERE fts @@ query AND ($2 = '' OR kind = $2)`

	ctx := context.Background()
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) `+where, q.Text, q.Kind).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT url, kind, title, item_type,
			ts_headline('simple', title, query, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>')
		`+where+`
		ORDER BY ts_rank(fts, query) DESC, resolved_at DESC
		LIMIT $3 OFFSET $4`, q.Text, q.Kind, normalizeLimit(q.Limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.URL, &r.Kind, &r.Title, &r.ItemType, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every stored link for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LinkRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT url, kind, title, item_type, resolved_at FROM resolved_links`)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	defer rows.Close()

	records := make([]LinkRecord, 0)
	for rows.Next() {
		var url, kind, title, itemType string
		var resolvedAt time.Time
		if err := rows.Scan(&url, &kind, &title, &itemType, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		records = append(records, NewLinkRecord(url, kind, title, itemType, resolvedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return records, nil
}
