package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

var ErrClosed = errors.New("browser closed")

// Chrome drives a visible Chrome window with a persistent profile, so that a
// sign-in done in one of its tabs sticks for later sessions. Every page
// target that changes URL is reported to onNavigate.
type Chrome struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	onNavigate  func(url string)

	mu      sync.Mutex
	lastURL map[target.ID]string
	closed  bool
}

func NewChrome(profileDir string, onNavigate func(url string)) (*Chrome, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
	}
	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		onNavigate:  onNavigate,
		lastURL:     make(map[target.ID]string),
	}

	// starts the browser
	if err := chromedp.Run(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	chromedp.ListenBrowser(ctx, c.handleEvent)
	if err := target.SetDiscoverTargets(true).Do(c.browserContext()); err != nil {
		c.Close()
		return nil, fmt.Errorf("discover targets: %w", err)
	}
	return c, nil
}

func (c *Chrome) browserContext() context.Context {
	return cdp.WithExecutor(c.ctx, chromedp.FromContext(c.ctx).Browser)
}

func (c *Chrome) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *target.EventTargetInfoChanged:
		info := ev.TargetInfo
		if info == nil || info.Type != "page" || info.URL == "" {
			return
		}
		c.mu.Lock()
		if c.lastURL[info.TargetID] == info.URL {
			c.mu.Unlock()
			return
		}
		c.lastURL[info.TargetID] = info.URL
		c.mu.Unlock()
		if c.onNavigate != nil {
			// event callbacks must not block the browser's read loop
			go c.onNavigate(info.URL)
		}
	case *target.EventTargetDestroyed:
		c.mu.Lock()
		delete(c.lastURL, ev.TargetID)
		c.mu.Unlock()
	}
}

// OpenTab creates a background tab for url in the attached window.
func (c *Chrome) OpenTab(ctx context.Context, url string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := target.CreateTarget(url).WithBackground(true).Do(c.browserContext())
	if err != nil {
		return fmt.Errorf("open tab %s: %w", url, err)
	}
	slog.Info("browser: opened sign-in tab", "url", url, "target", id)
	return nil
}

func (c *Chrome) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.allocCancel()
}
