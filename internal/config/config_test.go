package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("AUTH_PROMPT_INTERVAL_SECONDS", "")
	t.Setenv("ASANA_BASE_URL", "")

	cfg := Load()
	if cfg.RedisURL != "" {
		t.Errorf("expected in-memory cache by default, got redis url %q", cfg.RedisURL)
	}
	if cfg.AuthPromptInterval != 30*time.Second {
		t.Errorf("expected 30s prompt interval, got %s", cfg.AuthPromptInterval)
	}
	if cfg.AsanaBaseURL != "https://app.asana.com" {
		t.Errorf("unexpected asana base url %q", cfg.AsanaBaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JIRA_HOSTS", " Jira.Example.com, ,tickets.corp.io ")
	t.Setenv("ASANA_BASE_URL", "http://localhost:9000/")
	t.Setenv("AUTH_PROMPT_INTERVAL_SECONDS", "not-a-number")
	t.Setenv("BROWSER_ENABLED", "true")

	cfg := Load()
	if len(cfg.JiraHosts) != 2 || cfg.JiraHosts[0] != "jira.example.com" || cfg.JiraHosts[1] != "tickets.corp.io" {
		t.Errorf("unexpected jira hosts %v", cfg.JiraHosts)
	}
	if cfg.AsanaBaseURL != "http://localhost:9000" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.AsanaBaseURL)
	}
	if cfg.AuthPromptInterval != 30*time.Second {
		t.Errorf("invalid integer should fall back, got %s", cfg.AuthPromptInterval)
	}
	if !cfg.BrowserEnabled {
		t.Error("expected browser enabled")
	}
}
