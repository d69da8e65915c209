package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/v0xg/bddgen/internal/config"
)

// Options configures the browser session.
type Options struct {
	Width             int
	Height            int
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	PostLoadWait      time.Duration
	ProfileDir        string // Chrome/Chromium profile directory for authenticated sessions
}

// OptionsFromConfig maps the browser configuration section onto Options.
func OptionsFromConfig(cfg config.BrowserConfig) Options {
	return Options{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		PostLoadWait:      cfg.PostLoadWait,
		ProfileDir:        cfg.ProfileDir,
	}
}

// Browser wraps one Rod browser and its single tab. It is not safe for
// concurrent use; callers drive it from one goroutine at a time.
type Browser struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	opts     Options

	// ctx is cancelled by Close, which tears down any in-flight operation.
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// Launch starts a browser with one blank tab configured from opts.
func Launch(opts Options) (*Browser, error) {
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1920, 1080
	}

	l := launcher.New().Headless(opts.Headless)
	if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		cancel()
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		cancel()
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	b := &Browser{browser: browser, page: page, launcher: l, opts: opts, ctx: ctx, cancel: cancel}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("setting viewport: %w", err)
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("setting user agent: %w", err)
		}
	}

	return b, nil
}

// Close cleans up browser resources. Operations still running on the tab
// are cancelled. Close is idempotent.
func (b *Browser) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()

	var errs []error
	if b.page != nil {
		// the session context is already cancelled, so close on a fresh one
		if err := b.page.Context(context.Background()).Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.browser != nil {
		if err := b.browser.Context(context.Background()).Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return errors.Join(errs...)
}

// Page returns the underlying Rod page
func (b *Browser) Page() *rod.Page {
	return b.page
}

// opContext derives a context that ends with either the caller's context or
// the session.
func (b *Browser) opContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if b.closed.Load() {
		return nil, nil, ErrSessionClosed
	}
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}, nil
}

// Navigate loads url and blocks until the load event, a short network-idle
// window and the configured post-load wait have passed.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	opCtx, done, err := b.opContext(ctx)
	if err != nil {
		return err
	}
	defer done()

	page := b.page.Context(opCtx).Timeout(b.opts.NavigationTimeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: b.sessionErr(err)}
	}
	if err := page.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: b.sessionErr(err)}
	}

	// Wait for network idle with timeout (don't hang on persistent connections)
	b.page.Context(opCtx).Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	if b.opts.PostLoadWait > 0 {
		if err := sleep(opCtx, b.opts.PostLoadWait); err != nil {
			return &NavigationError{URL: url, Err: b.sessionErr(err)}
		}
	}
	return nil
}

// Evaluate runs q in the page and decodes its JSON result into out. A nil
// out discards the result.
func (b *Browser) Evaluate(ctx context.Context, q Query, out any, args ...any) error {
	opCtx, done, err := b.opContext(ctx)
	if err != nil {
		return err
	}
	defer done()

	res, err := b.page.Context(opCtx).Evaluate(&rod.EvalOptions{
		JS:           q.JS,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return &EvaluationError{Query: q.Name, Err: b.sessionErr(err)}
	}
	if out == nil {
		return nil
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return &EvaluationError{Query: q.Name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &EvaluationError{Query: q.Name, Err: fmt.Errorf("decoding result: %w", err)}
	}
	return nil
}

// SnapshotVisibleElements returns every visible element that intersects the
// viewport.
func (b *Browser) SnapshotVisibleElements(ctx context.Context) ([]VisibleElement, error) {
	var elements []VisibleElement
	if err := b.Evaluate(ctx, VisibleElementsQuery, &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// Hover scrolls the element at the XPath locator into view and moves the
// mouse over it, failing after timeout.
func (b *Browser) Hover(ctx context.Context, locator string, timeout time.Duration) error {
	return b.act(ctx, "hover", locator, timeout, func(el *rod.Element) error {
		return el.Hover()
	})
}

// Click scrolls the element at the XPath locator into view and left-clicks
// it, failing after timeout.
func (b *Browser) Click(ctx context.Context, locator string, timeout time.Duration) error {
	return b.act(ctx, "click", locator, timeout, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (b *Browser) act(ctx context.Context, action, locator string, timeout time.Duration, do func(*rod.Element) error) error {
	opCtx, done, err := b.opContext(ctx)
	if err != nil {
		return err
	}
	defer done()

	page := b.page.Context(opCtx).Timeout(timeout)
	defer page.CancelTimeout()

	fail := func(err error) error {
		return &ActionTimeoutError{Action: action, Locator: locator, Timeout: timeout, Err: b.sessionErr(err)}
	}

	el, err := page.ElementX(locator)
	if err != nil {
		return fail(err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fail(err)
	}
	if err := do(el); err != nil {
		return fail(err)
	}
	return nil
}

// CurrentURL returns window.location.href.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var href string
	if err := b.Evaluate(ctx, Query{Name: "current-url", JS: `() => window.location.href`}, &href); err != nil {
		return "", err
	}
	return href, nil
}

// PageContent returns the serialized document HTML.
func (b *Browser) PageContent(ctx context.Context) (string, error) {
	opCtx, done, err := b.opContext(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	html, err := b.page.Context(opCtx).HTML()
	if err != nil {
		return "", fmt.Errorf("reading page content: %w", b.sessionErr(err))
	}
	return html, nil
}

// Screenshot captures the viewport as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, done, err := b.opContext(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	data, err := b.page.Context(opCtx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", b.sessionErr(err))
	}
	return data, nil
}

// sessionErr reports ErrSessionClosed for failures caused by Close.
func (b *Browser) sessionErr(err error) error {
	if b.closed.Load() {
		return ErrSessionClosed
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
