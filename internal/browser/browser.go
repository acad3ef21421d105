// Package browser opens sign-in tabs for services that answered with an
// auth wall and reports the pages those tabs land on.
package browser

import (
	"context"
	"log/slog"
)

// TabOpener opens url in a tab that does not take focus.
type TabOpener interface {
	OpenTab(ctx context.Context, url string) error
}

// LogOpener only logs the request. It is used when no browser is attached,
// in which case the interceptor extension opens the tab itself on the
// authRequired push.
type LogOpener struct{}

func (LogOpener) OpenTab(_ context.Context, url string) error {
	slog.Info("browser: sign-in tab requested", "url", url)
	return nil
}
