package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("resolution not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertResolution stores the latest resolution of a link and bumps its
// resolve counter. A fallback never replaces a real title recorded earlier.
func (s *PostgresStore) UpsertResolution(ctx context.Context, item Resolution) error {
	resolvedAt := item.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolved_links (url, kind, title, item_type, authoritative, needs_auth, resolved_at, first_resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (url) DO UPDATE SET
			title = CASE WHEN resolved_links.authoritative AND NOT EXCLUDED.authoritative
				THEN resolved_links.title ELSE EXCLUDED.title END,
			item_type = CASE WHEN resolved_links.authoritative AND NOT EXCLUDED.authoritative
				THEN resolved_links.item_type ELSE EXCLUDED.item_type END,
			authoritative = resolved_links.authoritative OR EXCLUDED.authoritative,
			needs_auth = EXCLUDED.needs_auth,
			resolve_count = resolved_links.resolve_count + 1,
			resolved_at = EXCLUDED.resolved_at
	`, item.URL, item.Kind, item.Title, item.ItemType, item.Authoritative, item.NeedsAuth, resolvedAt)
	if err != nil {
		return fmt.Errorf("upsert resolution: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResolution(ctx context.Context, url string) (Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT url, kind, title, item_type, authoritative, needs_auth, resolve_count, first_resolved_at, resolved_at
		FROM resolved_links
		WHERE url = $1
	`, url)
	item, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Resolution{}, ErrNotFound
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("get resolution: %w", err)
	}
	return item, nil
}

// ListRecent returns the most recently resolved links, newest first. kind
// may be empty.
func (s *PostgresStore) ListRecent(ctx context.Context, kind string, limit int) ([]Resolution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, kind, title, item_type, authoritative, needs_auth, resolve_count, first_resolved_at, resolved_at
		FROM resolved_links
		WHERE ($1 = '' OR kind = $1)
		ORDER BY resolved_at DESC
		LIMIT $2
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	items := make([]Resolution, 0)
	for rows.Next() {
		item, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResolution(row rowScanner) (Resolution, error) {
	var item Resolution
	err := row.Scan(
		&item.URL,
		&item.Kind,
		&item.Title,
		&item.ItemType,
		&item.Authoritative,
		&item.NeedsAuth,
		&item.ResolveCount,
		&item.FirstResolvedAt,
		&item.ResolvedAt,
	)
	return item, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
