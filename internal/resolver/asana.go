package resolver

import (
	"context"
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

// ResolveAsana returns the display title of an Asana task link. A non-empty
// taskID overrides the id parsed from rawURL.
func (r *Resolver) ResolveAsana(ctx context.Context, rawURL, taskID string, forceRefresh bool) (Result, error) {
	rawURL = links.SanitizeURL(rawURL)
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		var ok bool
		if taskID, ok = links.AsanaTaskID(rawURL); !ok {
			return Result{Title: links.AsanaFallbackTitle(""), ItemType: links.TypeAsanaTask}, nil
		}
	}

	retry := func() {
		r.retry(links.KindAsana, rawURL, func(ctx context.Context) (Result, error) {
			return r.ResolveAsana(ctx, rawURL, taskID, true)
		})
	}

	if !forceRefresh {
		if entry, ok := r.lookup(ctx, links.KindAsana, rawURL); ok && !r.refetchWalled(links.KindAsana, rawURL, entry, retry) {
			return Result{
				Title:         links.CleanAsanaTitle(entry.Title, taskID, rawURL),
				ItemType:      links.TypeAsanaTask,
				Authoritative: entry.Authoritative,
				NeedsAuth:     entry.NeedsAuth,
				Cached:        true,
			}, nil
		}
	}

	return r.shared(ctx, links.KindAsana, "asana:"+rawURL, forceRefresh, func(ctx context.Context) (Result, error) {
		out, err := r.fetchAsana(ctx, taskID)
		if err != nil {
			return Result{}, err
		}
		return r.finish(ctx, links.KindAsana, rawURL, out, retry, rawURL), nil
	})
}

func (r *Resolver) fetchAsana(ctx context.Context, taskID string) (outcome, error) {
	fallback := outcome{title: links.AsanaFallbackTitle(taskID), itemType: links.TypeAsanaTask}

	name, err := r.asanaAPI(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		fetchesTotal.WithLabelValues("asana", "api", "error").Inc()
		slog.Debug("resolver: asana api failed", "task", taskID, "error", err)
	} else {
		fetchesTotal.WithLabelValues("asana", "api", "ok").Inc()
	}

	if name == "" {
		name, err = r.asanaHTML(ctx, taskID)
		switch {
		case errors.Is(err, errAuthWall):
			fetchesTotal.WithLabelValues("asana", "html", "auth_wall").Inc()
			fallback.walled = true
			return fallback, nil
		case err != nil:
			if ctx.Err() != nil {
				return outcome{}, ctx.Err()
			}
			fetchesTotal.WithLabelValues("asana", "html", "error").Inc()
			slog.Warn("resolver: asana page fetch failed", "task", taskID, "error", err)
			return fallback, nil
		}
		fetchesTotal.WithLabelValues("asana", "html", "ok").Inc()
	}

	if links.IsGenericAsanaTitle(name) {
		fetchesTotal.WithLabelValues("asana", "title", "generic").Inc()
		return fallback, nil
	}
	return outcome{title: name, itemType: links.TypeAsanaTask, authoritative: true}, nil
}

func (r *Resolver) asanaAPI(ctx context.Context, taskID string) (string, error) {
	endpoint := r.asanaBaseURL + "/api/1.0/tasks/" + url.PathEscape(taskID)
	header := http.Header{}
	header.Set("Accept", "application/json")
	if r.asanaToken != "" {
		header.Set("Authorization", "Bearer "+r.asanaToken)
	}

	resp, err := r.get(ctx, endpoint, header)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("asana api %s: status %d", taskID, resp.status)
	}
	return strings.TrimSpace(gjson.GetBytes(resp.body, "data.name").String()), nil
}

// asanaHTML scrapes the task page. A page none of the extractors can read is
// taken to be a sign-in interstitial.
func (r *Resolver) asanaHTML(ctx context.Context, taskID string) (string, error) {
	header := http.Header{}
	header.Set("Accept", "text/html")
	resp, err := r.get(ctx, r.asanaBaseURL+"/0/0/"+url.PathEscape(taskID)+"/f", header)
	if err != nil {
		return "", err
	}
	doc := string(resp.body)
	if resp.walled() || extract.LooksLikeLogin(doc) {
		return "", errAuthWall
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("asana page %s: status %d", taskID, resp.status)
	}
	name, ok := extract.AsanaTitle(doc, taskID)
	if !ok {
		return "", errAuthWall
	}
	return name, nil
}
