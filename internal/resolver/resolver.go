// Package resolver turns Jira and Asana links into display titles. Each
// lookup goes cache first, then the service's REST API, then the HTML page,
// and finally a deterministic fallback title. Responses that show a sign-in
// wall open a login tab, notify the interceptors, and queue a retry that
// runs once the sign-in is observed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"titlelink/api/internal/authwall"
	"titlelink/api/internal/browser"
	"titlelink/api/internal/cache"
	"titlelink/api/internal/links"
	"titlelink/api/internal/push"
)

const (
	defaultAsanaBaseURL = "https://app.asana.com"
	maxBodyBytes        = 4 << 20
)

var errAuthWall = errors.New("authentication required")

// Result is the reply to a resolve request.
type Result struct {
	Title         string         `json:"title"`
	ItemType      links.ItemType `json:"itemType"`
	Authoritative bool           `json:"authoritative"`
	NeedsAuth     bool           `json:"needsAuth,omitempty"`
	Cached        bool           `json:"cached"`
}

// Recorder receives every freshly fetched entry. Implementations must not
// block.
type Recorder interface {
	Record(ctx context.Context, entry cache.Entry)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, entry cache.Entry)

func (f RecorderFunc) Record(ctx context.Context, entry cache.Entry) {
	f(ctx, entry)
}

type Options struct {
	HTTPClient *http.Client
	Cache      cache.Cache
	Tracker    *authwall.Tracker
	Opener     browser.TabOpener
	Publisher  push.Publisher
	Recorder   Recorder

	// JiraToken is sent on REST calls: "email:apitoken" as basic auth,
	// anything else as a bearer personal access token.
	JiraToken    string
	AsanaBaseURL string
	AsanaToken   string

	Now func() time.Time
}

type Resolver struct {
	client    *http.Client
	cache     cache.Cache
	tracker   *authwall.Tracker
	opener    browser.TabOpener
	publisher push.Publisher
	recorder  Recorder

	jiraToken    string
	asanaBaseURL string
	asanaToken   string
	now          func() time.Time

	inflight singleflight.Group
}

func New(opts Options) *Resolver {
	r := &Resolver{
		client:       opts.HTTPClient,
		cache:        opts.Cache,
		tracker:      opts.Tracker,
		opener:       opts.Opener,
		publisher:    opts.Publisher,
		recorder:     opts.Recorder,
		jiraToken:    opts.JiraToken,
		asanaBaseURL: strings.TrimRight(opts.AsanaBaseURL, "/"),
		asanaToken:   opts.AsanaToken,
		now:          opts.Now,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.cache == nil {
		r.cache = cache.NewMemory()
	}
	if r.tracker == nil {
		r.tracker = authwall.NewTracker(authwall.DefaultPromptInterval, nil)
	}
	if r.opener == nil {
		r.opener = browser.LogOpener{}
	}
	if r.asanaBaseURL == "" {
		r.asanaBaseURL = defaultAsanaBaseURL
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Tracker exposes the sign-in bookkeeping shared with the detector.
func (r *Resolver) Tracker() *authwall.Tracker {
	return r.tracker
}

// outcome is what a tiered fetch produced before it is cached.
type outcome struct {
	title         string
	itemType      links.ItemType
	authoritative bool
	walled        bool
}

// lookup returns the first cached entry among keys.
func (r *Resolver) lookup(ctx context.Context, kind links.Kind, keys ...string) (cache.Entry, bool) {
	for _, key := range keys {
		entry, err := r.cache.Get(ctx, key)
		if err == nil {
			cacheLookupsTotal.WithLabelValues(string(kind), "hit").Inc()
			return entry, true
		}
		if !errors.Is(err, cache.ErrNotFound) {
			slog.Warn("resolver: cache read failed", "key", key, "error", err)
		}
	}
	cacheLookupsTotal.WithLabelValues(string(kind), "miss").Inc()
	return cache.Entry{}, false
}

// refetchWalled decides what to do with a cached placeholder that was
// written behind a sign-in wall, possibly by another process. When kind has
// signed in since, the entry is stale and must be fetched again; otherwise a
// local retry is queued so the next sign-in replaces it.
func (r *Resolver) refetchWalled(kind links.Kind, rawURL string, entry cache.Entry, retry func()) bool {
	if !entry.NeedsAuth {
		return false
	}
	if r.tracker.Authenticated(kind) {
		return true
	}
	r.tracker.Requeue(kind, rawURL, retry)
	return false
}

// shared collapses concurrent non-forced fetches of one key. The fetch runs
// detached from ctx so that one caller giving up does not fail the others.
func (r *Resolver) shared(ctx context.Context, kind links.Kind, key string, force bool, fetch func(context.Context) (Result, error)) (Result, error) {
	if force {
		return fetch(ctx)
	}
	ch := r.inflight.DoChan(key, func() (interface{}, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		if res.Shared {
			sharedTotal.WithLabelValues(string(kind)).Inc()
		}
		return res.Val.(Result), nil
	}
}

// finish caches the outcome, then runs the sign-in side effects, so anything
// a notification makes a listener read is already in the cache.
func (r *Resolver) finish(ctx context.Context, kind links.Kind, rawURL string, out outcome, retry func(), keys ...string) Result {
	entry := cache.Entry{
		URL:           rawURL,
		Kind:          kind,
		Title:         out.title,
		ItemType:      out.itemType,
		NeedsAuth:     out.walled,
		Authoritative: out.authoritative,
		ResolvedAt:    r.now().UTC(),
	}
	if err := r.cache.Set(ctx, entry, keys...); err != nil {
		slog.Warn("resolver: cache write failed", "url", rawURL, "error", err)
	}
	if out.walled {
		r.handleWall(ctx, kind, rawURL, retry)
	}
	if r.recorder != nil {
		r.recorder.Record(ctx, entry)
	}
	return Result{
		Title:         out.title,
		ItemType:      out.itemType,
		Authoritative: out.authoritative,
		NeedsAuth:     out.walled,
	}
}

func (r *Resolver) handleWall(ctx context.Context, kind links.Kind, rawURL string, retry func()) {
	authWallsTotal.WithLabelValues(string(kind)).Inc()
	decision := r.tracker.Block(kind, rawURL, retry)
	if decision.OpenTab {
		if err := r.opener.OpenTab(ctx, rawURL); err != nil {
			slog.Warn("resolver: open sign-in tab failed", "service", kind, "url", rawURL, "error", err)
		}
	}
	if decision.Notify && r.publisher != nil {
		event := push.Event{
			Type:    push.EventAuthRequired,
			URL:     rawURL,
			Service: kind,
			Message: signInMessage(kind),
		}
		if err := r.publisher.Publish(ctx, event); err != nil {
			slog.Warn("resolver: publish authRequired failed", "service", kind, "error", err)
		}
	}
}

func signInMessage(kind links.Kind) string {
	name := "Jira"
	if kind == links.KindAsana {
		name = "Asana"
	}
	return fmt.Sprintf("Sign in to %s to show link titles. Pending links update automatically afterwards.", name)
}

// retry re-resolves rawURL after a sign-in and pushes the title when it is
// now real.
func (r *Resolver) retry(kind links.Kind, rawURL string, resolve func(context.Context) (Result, error)) {
	ctx := context.Background()
	res, err := resolve(ctx)
	if err != nil {
		slog.Warn("resolver: retry failed", "service", kind, "url", rawURL, "error", err)
		return
	}
	if !res.Authoritative {
		slog.Info("resolver: retry still unresolved", "service", kind, "url", rawURL)
		return
	}
	if r.publisher == nil {
		return
	}
	event := push.Event{
		Type:     push.EventTitleResolved,
		URL:      rawURL,
		Title:    res.Title,
		ItemType: res.ItemType,
		Service:  kind,
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		slog.Warn("resolver: publish titleResolved failed", "url", rawURL, "error", err)
	}
}

// response is a fetched document with the details the wall checks need.
type response struct {
	status   int
	finalURL string
	body     []byte
}

func (r *Resolver) get(ctx context.Context, target string, header http.Header) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read %s: %w", target, err)
	}
	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return response{status: resp.StatusCode, finalURL: finalURL, body: body}, nil
}

// walled reports whether a response is a sign-in page instead of content.
func (resp response) walled() bool {
	switch {
	case resp.status == http.StatusUnauthorized, resp.status == http.StatusForbidden:
		return true
	case resp.status >= 300 && resp.status < 400:
		return true
	}
	return links.IsLoginPath(urlPath(resp.finalURL))
}
