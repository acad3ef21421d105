package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	CORSOrigin  string
	TokenSecret string
	TokenTTL    time.Duration
	LogLevel    string
	// Redis Configuration
	RedisURL string
	CacheTTL time.Duration
	// Resolution history; disabled when empty
	DatabaseURL    string
	MigrationsDir  string
	MeiliURL       string
	MeiliMasterKey string
	// Upstream services
	JiraHosts    []string
	JiraToken    string
	AsanaBaseURL string
	AsanaToken   string
	// Login tabs
	AuthPromptInterval time.Duration
	BrowserEnabled     bool
	BrowserProfileDir  string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8788"),
		CORSOrigin:  getenv("TITLELINK_CORS_ORIGIN", "*"),
		TokenSecret: getenv("TITLELINK_TOKEN_SECRET", "titlelink-dev-secret"),
		TokenTTL:    time.Duration(getenvInt("TITLELINK_TOKEN_TTL_SECONDS", 604800)) * time.Second,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		// Redis - optional, in-memory cache when empty
		RedisURL: getenv("REDIS_URL", ""),
		CacheTTL: time.Duration(getenvInt("TITLE_CACHE_TTL_SECONDS", 0)) * time.Second,
		// Postgres + Meilisearch - optional history and search
		DatabaseURL:    getenv("DATABASE_URL", ""),
		MigrationsDir:  getenv("TITLELINK_MIGRATIONS_DIR", "./db/migrations"),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		JiraHosts:      getenvList("JIRA_HOSTS"),
		JiraToken:      getenv("JIRA_TOKEN", ""),
		AsanaBaseURL:   strings.TrimRight(getenv("ASANA_BASE_URL", "https://app.asana.com"), "/"),
		AsanaToken:     getenv("ASANA_TOKEN", ""),
		// One login tab per service per window
		AuthPromptInterval: time.Duration(getenvInt("AUTH_PROMPT_INTERVAL_SECONDS", 30)) * time.Second,
		BrowserEnabled:     getenvBool("BROWSER_ENABLED", false),
		BrowserProfileDir:  getenv("BROWSER_PROFILE_DIR", "./data/browser"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvList splits a comma-separated variable, dropping blanks.
func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
