package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"titlelink/api/internal/extract"
	"titlelink/api/internal/links"
)

// ResolveJira returns the display title and issue type of a Jira link.
// The only error is the cancellation of ctx; every other failure yields a
// fallback title.
func (r *Resolver) ResolveJira(ctx context.Context, rawURL string, forceRefresh bool) (Result, error) {
	rawURL = links.SanitizeURL(rawURL)
	key, ok := links.JiraKey(rawURL)
	if !ok {
		return Result{Title: links.JiraFallbackTitle(""), ItemType: links.TypeUnknown}, nil
	}
	normalized := links.NormalizeJiraURL(rawURL, key)
	retry := func() {
		r.retry(links.KindJira, rawURL, func(ctx context.Context) (Result, error) {
			return r.ResolveJira(ctx, rawURL, true)
		})
	}

	if !forceRefresh {
		if entry, ok := r.lookup(ctx, links.KindJira, rawURL, normalized); ok && !r.refetchWalled(links.KindJira, rawURL, entry, retry) {
			return Result{
				Title:         links.CleanJiraTitle(entry.Title, key, rawURL),
				ItemType:      entry.ItemType,
				Authoritative: entry.Authoritative,
				NeedsAuth:     entry.NeedsAuth,
				Cached:        true,
			}, nil
		}
	}

	return r.shared(ctx, links.KindJira, "jira:"+normalized, forceRefresh, func(ctx context.Context) (Result, error) {
		out, err := r.fetchJira(ctx, rawURL, key)
		if err != nil {
			return Result{}, err
		}
		return r.finish(ctx, links.KindJira, rawURL, out, retry, rawURL, normalized), nil
	})
}

func (r *Resolver) fetchJira(ctx context.Context, rawURL, key string) (outcome, error) {
	fallback := outcome{title: links.JiraFallbackTitle(key), itemType: links.TypeUnknown}

	origin, ok := links.JiraOrigin(rawURL)
	if !ok {
		return fallback, nil
	}

	summary, itemType, err := r.jiraREST(ctx, origin, key)
	switch {
	case errors.Is(err, errAuthWall):
		fetchesTotal.WithLabelValues("jira", "rest", "auth_wall").Inc()
		fallback.walled = true
		return fallback, nil
	case err != nil:
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		fetchesTotal.WithLabelValues("jira", "rest", "error").Inc()
		slog.Debug("resolver: jira rest failed", "key", key, "error", err)
	case summary != "":
		fetchesTotal.WithLabelValues("jira", "rest", "ok").Inc()
		return outcome{
			title:         links.CleanJiraTitle(key+": "+summary, key, rawURL),
			itemType:      itemType,
			authoritative: true,
		}, nil
	default:
		fetchesTotal.WithLabelValues("jira", "rest", "empty").Inc()
	}

	title, htmlType, err := r.jiraHTML(ctx, origin+"/browse/"+key)
	switch {
	case errors.Is(err, errAuthWall):
		fetchesTotal.WithLabelValues("jira", "html", "auth_wall").Inc()
		fallback.walled = true
		return fallback, nil
	case err != nil:
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		fetchesTotal.WithLabelValues("jira", "html", "error").Inc()
		slog.Warn("resolver: jira page fetch failed", "key", key, "error", err)
		return fallback, nil
	case title == "" || links.IsGenericJiraTitle(title):
		fetchesTotal.WithLabelValues("jira", "html", "generic").Inc()
		return fallback, nil
	}

	fetchesTotal.WithLabelValues("jira", "html", "ok").Inc()
	if htmlType == links.TypeUnknown && itemType != "" {
		htmlType = itemType
	}
	return outcome{
		title:         links.CleanJiraTitle(title, key, rawURL),
		itemType:      htmlType,
		authoritative: true,
	}, nil
}

// jiraREST reads the summary and issue type from the v2 issue endpoint. A
// 200 without a summary returns no error and an empty summary.
func (r *Resolver) jiraREST(ctx context.Context, origin, key string) (string, links.ItemType, error) {
	endpoint := origin + "/rest/api/2/issue/" + url.PathEscape(key) + "?fields=summary,issuetype"
	header := http.Header{}
	header.Set("Accept", "application/json")
	if auth := jiraAuthorization(r.jiraToken); auth != "" {
		header.Set("Authorization", auth)
	}

	resp, err := r.get(ctx, endpoint, header)
	if err != nil {
		return "", "", err
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return "", "", errAuthWall
	}
	if resp.status != http.StatusOK {
		return "", "", fmt.Errorf("jira rest %s: status %d", key, resp.status)
	}
	if !gjson.ValidBytes(resp.body) {
		return "", "", fmt.Errorf("jira rest %s: response is not json", key)
	}
	fields := gjson.ParseBytes(resp.body).Get("fields")
	summary := strings.TrimSpace(fields.Get("summary").String())
	return summary, jiraIssueType(fields.Get("issuetype.name").String()), nil
}

func (r *Resolver) jiraHTML(ctx context.Context, browseURL string) (string, links.ItemType, error) {
	header := http.Header{}
	header.Set("Accept", "text/html")
	resp, err := r.get(ctx, browseURL, header)
	if err != nil {
		return "", "", err
	}
	doc := string(resp.body)
	if resp.walled() || extract.LooksLikeLogin(doc) {
		return "", "", errAuthWall
	}
	if resp.status != http.StatusOK {
		return "", "", fmt.Errorf("jira page %s: status %d", browseURL, resp.status)
	}
	itemType := extract.JiraItemType(doc)
	title, _ := extract.JiraTitle(doc)
	return title, itemType, nil
}

func jiraAuthorization(token string) string {
	switch {
	case token == "":
		return ""
	case strings.Contains(token, ":"):
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(token))
	default:
		return "Bearer " + token
	}
}

func jiraIssueType(name string) links.ItemType {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "":
		return links.TypeUnknown
	case "bug":
		return links.TypeBug
	case "task":
		return links.TypeTask
	case "story":
		return links.TypeStory
	case "epic":
		return links.TypeEpic
	case "sub-task", "subtask":
		return links.TypeSubtask
	}
	return links.ItemType(name)
}

func urlPath(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
