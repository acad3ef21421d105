// Package links holds the URL-level rules shared by the resolver: which
// service a link belongs to, how to pull an issue key or task id out of it,
// how Jira URLs are normalized for caching, and what the deterministic
// fallback titles look like.
package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind identifies the external service a link points at.
type Kind string

const (
	KindJira  Kind = "jira"
	KindAsana Kind = "asana"
)

// ItemType classifies the linked item.
type ItemType string

const (
	TypeUnknown        ItemType = "Unknown"
	TypeBug            ItemType = "Bug"
	TypeTask           ItemType = "Task"
	TypeStory          ItemType = "Story"
	TypeEpic           ItemType = "Epic"
	TypeSubtask        ItemType = "Subtask"
	TypeConfluencePage ItemType = "Confluence Page"
	TypeAsanaTask      ItemType = "AsanaTask"
)

const (
	jiraFallbackSuffix = "Jira Issue"
	asanaFallbackTitle = "Asana Task"
)

var (
	jiraPathKeyRe = regexp.MustCompile(`/(?:browse|issues)/([A-Z][A-Z0-9]+-\d+)`)
	jiraBareKeyRe = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)
	jiraKeyOnlyRe = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)

	asanaItemRe    = regexp.MustCompile(`/item/(\d+)`)
	asanaTaskRe    = regexp.MustCompile(`/task/(\d+)`)
	asanaGenericRe = regexp.MustCompile(`(?:/|task/)(\d+)`)
	digitRunRe     = regexp.MustCompile(`\d+`)

	whitespaceRe = regexp.MustCompile(`\s+`)
	loginPathRe  = regexp.MustCompile(`(?i)(?:^|/)(?:login|signin|sign-in|sign_in|auth|sso|logout)(?:\.jsp|\.action)?(?:/|$)`)
)

// SanitizeURL removes embedded line breaks that pasted text tends to carry.
func SanitizeURL(raw string) string {
	raw = strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	return strings.TrimSpace(raw)
}

// Host returns the bare host of raw, lower-cased, without port.
func Host(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// IsLoginPath reports whether a URL path belongs to a sign-in flow.
func IsLoginPath(path string) bool {
	return loginPathRe.MatchString(path)
}

// JiraKey derives the issue key from a Jira URL. The selectedIssue query
// parameter wins over /browse/ and /issues/ path segments, which win over
// any bare KEY-123 pattern in the string.
func JiraKey(raw string) (string, bool) {
	if parsed, err := url.Parse(raw); err == nil {
		if selected := strings.TrimSpace(parsed.Query().Get("selectedIssue")); jiraKeyOnlyRe.MatchString(selected) {
			return selected, true
		}
	}
	if match := jiraPathKeyRe.FindStringSubmatch(raw); match != nil {
		return match[1], true
	}
	if match := jiraBareKeyRe.FindStringSubmatch(raw); match != nil {
		return match[1], true
	}
	return "", false
}

// NormalizeJiraURL canonicalizes a Jira link to origin + /browse/ + key so
// that board, search and browse URLs for one issue share a cache entry.
func NormalizeJiraURL(raw, key string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
			return raw[:idx]
		}
		return raw
	}
	return parsed.Scheme + "://" + parsed.Host + "/browse/" + key
}

// JiraOrigin returns scheme://host of raw.
func JiraOrigin(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return parsed.Scheme + "://" + parsed.Host, true
}

// JiraFallbackTitle is the placeholder used when no summary could be resolved.
func JiraFallbackTitle(key string) string {
	if key == "" {
		return jiraFallbackSuffix
	}
	return key + ": " + jiraFallbackSuffix
}

// AsanaFallbackTitle is the placeholder used when no task name could be resolved.
func AsanaFallbackTitle(taskID string) string {
	if taskID == "" {
		return asanaFallbackTitle
	}
	return asanaFallbackTitle + " " + taskID
}

// CleanJiraTitle strips the source URL and any link on the same host out of
// title, drops repeated occurrences of the issue key, and returns the text
// prefixed with "KEY: " exactly once.
func CleanJiraTitle(title, key, rawURL string) string {
	text := title
	if rawURL != "" {
		text = strings.ReplaceAll(text, rawURL, "")
	}
	if host := Host(rawURL); host != "" {
		hostRe := regexp.MustCompile(`(?i)\S*` + regexp.QuoteMeta(host) + `\S*`)
		text = hostRe.ReplaceAllString(text, "")
	}

	body := tidy(text)
	if key == "" {
		if body == "" {
			return jiraFallbackSuffix
		}
		return body
	}

	prefixRe := regexp.MustCompile(`^\[?` + regexp.QuoteMeta(key) + `\b\]?\s*[:\-–|]?\s*`)
	for {
		next := prefixRe.ReplaceAllString(body, "")
		if next == body {
			break
		}
		body = next
	}
	keyRe := regexp.MustCompile(`[\[(]?\b` + regexp.QuoteMeta(key) + `\b[\])]?:?`)
	body = tidy(keyRe.ReplaceAllString(body, " "))

	if body == "" {
		body = jiraFallbackSuffix
	}
	return key + ": " + body
}

func tidy(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.Trim(text, " -–—:|·")
}

// IsGenericJiraTitle reports whether a page title belongs to a list view
// rather than an issue, which happens when Jira redirects away from the issue.
func IsGenericJiraTitle(title string) bool {
	title = strings.TrimSpace(title)
	switch {
	case strings.EqualFold(title, "Issue navigator"),
		strings.EqualFold(title, "Dashboard"),
		strings.EqualFold(title, "Issues"):
		return true
	}
	return strings.Contains(strings.ToLower(title), "issue search")
}

// CleanAsanaTitle strips rawURL out of a task name. A result that is empty
// or one of Asana's placeholders becomes the fallback title for taskID.
func CleanAsanaTitle(title, taskID, rawURL string) string {
	text := title
	if rawURL != "" {
		text = strings.ReplaceAll(text, rawURL, "")
	}
	text = tidy(text)
	if text == "" || IsGenericAsanaTitle(text) {
		return AsanaFallbackTitle(taskID)
	}
	return text
}

var genericAsanaTitles = []string{"Asana", "Asana Task", "Asana Project", "Redirecting"}

// IsGenericAsanaTitle reports whether title is one of Asana's placeholder
// strings, which never describe an actual task.
func IsGenericAsanaTitle(title string) bool {
	title = strings.TrimRight(strings.TrimSpace(title), ".… ")
	for _, generic := range genericAsanaTitles {
		if strings.EqualFold(title, generic) {
			return true
		}
	}
	return false
}

// AsanaTaskID extracts a task id from an Asana URL: /item/<id>, then
// /task/<id>, then the last /<digits> segment, then the longest digit run in
// any path segment (first one wins on ties).
func AsanaTaskID(raw string) (string, bool) {
	target := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		target = parsed.EscapedPath()
		if parsed.RawQuery != "" {
			target += "?" + parsed.RawQuery
		}
	}

	if match := asanaItemRe.FindStringSubmatch(target); match != nil {
		return match[1], true
	}
	if match := asanaTaskRe.FindStringSubmatch(target); match != nil {
		return match[1], true
	}
	if matches := asanaGenericRe.FindAllStringSubmatch(target, -1); len(matches) > 0 {
		return matches[len(matches)-1][1], true
	}

	best := ""
	for _, segment := range strings.Split(target, "/") {
		for _, run := range digitRunRe.FindAllString(segment, -1) {
			if len(run) > len(best) {
				best = run
			}
		}
	}
	return best, best != ""
}
