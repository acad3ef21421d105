package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"titlelink/api/internal/app"
	"titlelink/api/internal/authwall"
	"titlelink/api/internal/browser"
	"titlelink/api/internal/cache"
	"titlelink/api/internal/config"
	"titlelink/api/internal/push"
	"titlelink/api/internal/resolver"
	"titlelink/api/internal/search"
	"titlelink/api/internal/store"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := push.NewHub(32)
	var publisher push.Publisher = hub
	var titleCache cache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		slog.Info("using Redis for the title cache and event relay")
		redisCache, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			fatal("redis connection failed", err)
		}
		relay := push.NewRedisRelay(redisCache.Client(), hub)
		if err := relay.Start(ctx); err != nil {
			fatal("event relay failed", err)
		}
		titleCache = redisCache
		publisher = relay
	} else {
		slog.Info("using the in-memory title cache")
		titleCache = cache.NewMemory()
	}
	defer titleCache.Close()

	var history app.HistoryStore
	var searchService *search.Service
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("database connection failed", err)
		}
		defer db.Close()
		if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			fatal("migrations failed", err)
		}
		history = store.NewPostgresStore(db)

		var meiliClient *search.Meili
		if strings.TrimSpace(cfg.MeiliURL) != "" {
			meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		}
		searchService = search.NewService(meiliClient, search.NewPgFTS(db))
		defer searchService.Close()
		go searchService.ReindexAllFromPG(ctx)
	}

	tracker := authwall.NewTracker(cfg.AuthPromptInterval, nil)
	detector := authwall.NewDetector(tracker, cfg.JiraHosts, cfg.AsanaBaseURL)

	var opener browser.TabOpener = browser.LogOpener{}
	if cfg.BrowserEnabled {
		chrome, err := browser.NewChrome(cfg.BrowserProfileDir, func(url string) {
			if kind, retried, ok := detector.Observe(url); ok {
				slog.Info("sign-in observed in browser", "service", kind, "retried", retried)
			}
		})
		if err != nil {
			fatal("browser start failed", err)
		}
		defer chrome.Close()
		opener = chrome
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatal("cookie jar", err)
	}

	var service *app.Service
	titleResolver := resolver.New(resolver.Options{
		HTTPClient: &http.Client{Jar: jar},
		Cache:      titleCache,
		Tracker:    tracker,
		Opener:     opener,
		Publisher:  publisher,
		Recorder: resolver.RecorderFunc(func(ctx context.Context, entry cache.Entry) {
			service.Record(ctx, entry)
		}),
		JiraToken:    cfg.JiraToken,
		AsanaBaseURL: cfg.AsanaBaseURL,
		AsanaToken:   cfg.AsanaToken,
	})
	service = app.New(cfg, app.Deps{
		Resolver: titleResolver,
		Tracker:  tracker,
		Detector: detector,
		Hub:      hub,
		Cache:    titleCache,
		History:  history,
		Search:   searchService,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("titlelink API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
