package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"titlelink/api/internal/auth"
	"titlelink/api/internal/authwall"
	"titlelink/api/internal/cache"
	"titlelink/api/internal/config"
	"titlelink/api/internal/links"
	"titlelink/api/internal/push"
	"titlelink/api/internal/resolver"
	"titlelink/api/internal/search"
	"titlelink/api/internal/store"
)

const historyWriteTimeout = 5 * time.Second

// Session is an authenticated interceptor instance.
type Session struct {
	Token      string
	InstanceID string
	Origin     string
	ExpiresAt  time.Time
}

// Resolver is implemented by *resolver.Resolver.
type Resolver interface {
	ResolveJira(ctx context.Context, rawURL string, forceRefresh bool) (resolver.Result, error)
	ResolveAsana(ctx context.Context, rawURL, taskID string, forceRefresh bool) (resolver.Result, error)
}

// HistoryStore is implemented by *store.PostgresStore.
type HistoryStore interface {
	UpsertResolution(ctx context.Context, item store.Resolution) error
	GetResolution(ctx context.Context, url string) (store.Resolution, error)
	ListRecent(ctx context.Context, kind string, limit int) ([]store.Resolution, error)
	Ping(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Service is wired with. History and Search
// are optional.
type Deps struct {
	Resolver Resolver
	Tracker  *authwall.Tracker
	Detector *authwall.Detector
	Hub      *push.Hub
	Cache    cache.Cache
	History  HistoryStore
	Search   *search.Service
}

type Service struct {
	cfg      config.Config
	resolver Resolver
	tracker  *authwall.Tracker
	detector *authwall.Detector
	hub      *push.Hub
	cache    pinger
	history  HistoryStore
	search   *search.Service
	now      func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		resolver: deps.Resolver,
		tracker:  deps.Tracker,
		detector: deps.Detector,
		hub:      deps.Hub,
		history:  deps.History,
		search:   deps.Search,
		now:      time.Now,
	}
	if deps.Cache != nil {
		s.cache = deps.Cache
	}
	return s
}

// RegisterInstance issues a token for a new interceptor instance.
func (s *Service) RegisterInstance(origin string) (Session, error) {
	origin = strings.TrimSpace(origin)
	claims, token, err := auth.RegisterInstance([]byte(s.cfg.TokenSecret), origin, s.cfg.TokenTTL, s.now())
	if err != nil {
		return Session{}, err
	}
	slog.Info("app: instance registered", "instance", claims.Instance, "origin", origin)
	return sessionFromClaims(token, claims), nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return sessionFromClaims(token, claims), nil
}

func sessionFromClaims(token string, claims auth.Claims) Session {
	return Session{
		Token:      token,
		InstanceID: claims.Instance,
		Origin:     claims.Origin,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}
}

func (s *Service) ResolveJira(ctx context.Context, rawURL string, forceRefresh bool) (resolver.Result, error) {
	rawURL = links.SanitizeURL(rawURL)
	if err := validateLink(rawURL); err != nil {
		return resolver.Result{}, err
	}
	return s.resolver.ResolveJira(ctx, rawURL, forceRefresh)
}

func (s *Service) ResolveAsana(ctx context.Context, rawURL, taskID string, forceRefresh bool) (resolver.Result, error) {
	rawURL = links.SanitizeURL(rawURL)
	if err := validateLink(rawURL); err != nil {
		return resolver.Result{}, err
	}
	return s.resolver.ResolveAsana(ctx, rawURL, taskID, forceRefresh)
}

func validateLink(rawURL string) error {
	if rawURL == "" {
		return validationError("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return validationError("url must be an absolute http(s) link")
	}
	return nil
}

// Subscribe opens the push stream for an instance.
func (s *Service) Subscribe(instanceID string) (<-chan push.Event, func()) {
	return s.hub.Subscribe(instanceID)
}

// ObserveNavigation feeds a finished tab navigation to the sign-in detector.
// Retries it triggers run in the background.
func (s *Service) ObserveNavigation(rawURL string) error {
	rawURL = links.SanitizeURL(rawURL)
	if err := validateLink(rawURL); err != nil {
		return err
	}
	go func() {
		if kind, retried, ok := s.detector.Observe(rawURL); ok {
			slog.Info("app: sign-in observed", "service", kind, "retried", retried)
		}
	}()
	return nil
}

// AuthStatus reports the sign-in state of every service.
func (s *Service) AuthStatus() map[links.Kind]authwall.Snapshot {
	return map[links.Kind]authwall.Snapshot{
		links.KindJira:  s.tracker.Snapshot(links.KindJira),
		links.KindAsana: s.tracker.Snapshot(links.KindAsana),
	}
}

// Record writes a fresh resolution to the history store and search index
// without blocking the resolver.
func (s *Service) Record(_ context.Context, entry cache.Entry) {
	if s.history == nil && s.search == nil {
		return
	}
	go func() {
		if s.history != nil {
			ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
			defer cancel()
			if err := s.history.UpsertResolution(ctx, store.Resolution{
				URL:           entry.URL,
				Kind:          string(entry.Kind),
				Title:         entry.Title,
				ItemType:      string(entry.ItemType),
				Authoritative: entry.Authoritative,
				NeedsAuth:     entry.NeedsAuth,
				ResolvedAt:    entry.ResolvedAt,
			}); err != nil {
				slog.Warn("app: record resolution failed", "url", entry.URL, "error", err)
			}
		}
		if s.search != nil && entry.Authoritative {
			s.search.IndexLink(search.NewLinkRecord(entry.URL, string(entry.Kind), entry.Title, string(entry.ItemType), entry.ResolvedAt))
		}
	}()
}

func (s *Service) RecentLinks(ctx context.Context, kind string, limit int) ([]store.Resolution, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Resolution history is not configured", nil)
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	return s.history.ListRecent(ctx, kind, limit)
}

// LinkHistory returns the stored resolution of one link.
func (s *Service) LinkHistory(ctx context.Context, rawURL string) (store.Resolution, error) {
	if s.history == nil {
		return store.Resolution{}, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Resolution history is not configured", nil)
	}
	rawURL = links.SanitizeURL(rawURL)
	if err := validateLink(rawURL); err != nil {
		return store.Resolution{}, err
	}
	return s.history.GetResolution(ctx, rawURL)
}

func (s *Service) SearchLinks(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{}, validationError("q is required")
	}
	if err := validateKind(q.Kind); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(q), nil
}

func validateKind(kind string) error {
	switch links.Kind(kind) {
	case "", links.KindJira, links.KindAsana:
		return nil
	}
	return validationError("kind must be jira or asana")
}

// Ping checks every configured backend and returns the per-backend errors.
func (s *Service) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{}
	if s.cache != nil {
		checks["cache"] = s.cache.Ping(ctx)
	}
	if s.history != nil {
		checks["database"] = s.history.Ping(ctx)
	}
	return checks
}
