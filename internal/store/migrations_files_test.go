package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var migrationsPath = filepath.Join("..", "..", "db", "migrations")

var migrationName = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.(up|down)\.sql$`)

func readMigrations(t *testing.T) map[string]map[string]string {
	t.Helper()
	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	byVersion := map[string]map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("migration %s does not follow NNNN_name.(up|down).sql", entry.Name())
		}
		body, err := os.ReadFile(filepath.Join(migrationsPath, entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		if byVersion[match[1]] == nil {
			byVersion[match[1]] = map[string]string{}
		}
		if _, dup := byVersion[match[1]][match[2]]; dup {
			t.Fatalf("duplicate %s migration for version %s", match[2], match[1])
		}
		byVersion[match[1]][match[2]] = string(body)
	}
	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	return byVersion
}

func TestMigrationsPairUpAndTouchResolvedLinks(t *testing.T) {
	for version, files := range readMigrations(t) {
		up, hasUp := files["up"]
		down, hasDown := files["down"]
		if !hasUp || !hasDown {
			t.Fatalf("version %s must include both up and down files", version)
		}
		if !strings.Contains(up, "resolved_links") || !strings.Contains(down, "resolved_links") {
			t.Errorf("version %s: up and down must both address resolved_links", version)
		}
	}
}

func TestInitialMigrationCreatesScannedColumns(t *testing.T) {
	up := readMigrations(t)["0001"]["up"]
	if up == "" {
		t.Fatal("missing 0001 up migration")
	}
	for _, column := range []string{
		"url", "kind", "title", "item_type", "authoritative", "needs_auth",
		"resolve_count", "first_resolved_at", "resolved_at",
	} {
		if !regexp.MustCompile(`(?m)^\s*` + column + `\s`).MatchString(up) {
			t.Errorf("0001 up migration lacks column %s", column)
		}
	}
}
