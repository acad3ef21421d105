package authwall

import (
	"net/url"
	"regexp"
	"strings"

	"titlelink/api/internal/links"
)

var (
	jiraIssuePathRe = regexp.MustCompile(`/(?:browse|issues)/`)
	asanaItemPathRe = regexp.MustCompile(`^/\d+/\d+(?:/|$)|/(?:task|project|item)/\d+`)
)

// Detector decides from finished tab navigations that a blocked service is
// signed in again. It is a heuristic: a user browsing to an issue on their
// own also counts, and SSO flows that never land on an issue are missed.
type Detector struct {
	tracker   *Tracker
	jiraHosts map[string]bool
	asanaHost string
}

// NewDetector watches for Jira on *.atlassian.net plus jiraHosts, and for
// Asana on the host of asanaBaseURL.
func NewDetector(tracker *Tracker, jiraHosts []string, asanaBaseURL string) *Detector {
	hosts := make(map[string]bool, len(jiraHosts))
	for _, host := range jiraHosts {
		hosts[strings.ToLower(host)] = true
	}
	return &Detector{
		tracker:   tracker,
		jiraHosts: hosts,
		asanaHost: links.Host(asanaBaseURL),
	}
}

// IsJiraHost reports whether host serves Jira.
func (d *Detector) IsJiraHost(host string) bool {
	host = strings.ToLower(host)
	return d.jiraHosts[host] || strings.HasSuffix(host, ".atlassian.net")
}

// IsAsanaHost reports whether host serves Asana.
func (d *Detector) IsAsanaHost(host string) bool {
	host = strings.ToLower(host)
	return host == d.asanaHost || host == "asana.com" || strings.HasSuffix(host, ".asana.com")
}

// Classify returns the service whose sign-in a finished navigation to rawURL
// proves, if any.
func (d *Detector) Classify(rawURL string) (links.Kind, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	if links.IsLoginPath(parsed.Path) {
		return "", false
	}
	host := parsed.Hostname()
	switch {
	case d.IsJiraHost(host) && jiraIssuePathRe.MatchString(parsed.Path):
		return links.KindJira, true
	case d.IsAsanaHost(host) && asanaItemPathRe.MatchString(parsed.Path):
		return links.KindAsana, true
	}
	return "", false
}

// Observe handles one finished navigation. When it proves a sign-in, the
// service's pending retries are run and their count returned.
func (d *Detector) Observe(rawURL string) (links.Kind, int, bool) {
	kind, ok := d.Classify(rawURL)
	if !ok {
		return "", 0, false
	}
	return kind, d.tracker.Complete(kind), true
}
