package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Navigation failure modes the collector reacts to.
var (
	// ErrLoginWall means the platform redirected to its sign-in gate.
	// Sessions have no credential-renewal capability, so the scrape
	// aborts and the bundle needs recapturing.
	ErrLoginWall = errors.New("collector: login wall")

	// ErrNavExhausted means the retry budget was spent without a
	// successful page load.
	ErrNavExhausted = errors.New("collector: navigation attempts exhausted")
)

// defaultUserAgent is presented when Options.UserAgent is empty.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// stealthJS masks the usual automation tells before any page script
// runs.
const stealthJS = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined, configurable: true});
window.chrome = window.chrome || {runtime: {}};
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en'], configurable: true});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3], configurable: true});
`

const heightJS = `Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`

// Session owns one browser instance for the duration of one scrape.
type Session struct {
	platform Platform
	opts     Options
	log      *slog.Logger

	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession launches a browser configured to keep automation
// fingerprints down and, when a credential bundle is configured,
// restores it before handing the session back. Launch failures are
// fatal for the scrape; bundle problems only degrade the session to
// unauthenticated.
func NewSession(ctx context.Context, platform Platform, opts Options, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1280, 1024),
		chromedp.UserAgent(ua),
	)
	if path := os.Getenv("CHROME_PATH"); path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// Force the browser process up before any real work.
	err := chromedp.Run(tab,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
			return err
		}),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("collector: browser launch: %w", err)
	}

	s := &Session{
		platform:    platform,
		opts:        opts,
		log:         log,
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}
	s.restoreCredentials()
	return s, nil
}

// restoreCredentials injects a previously captured bundle. Every
// failure lands on "proceed unauthenticated": a missing file, an
// undecodable bundle, and individually rejected cookies are logged and
// skipped, never fatal.
func (s *Session) restoreCredentials() {
	if s.opts.CookiePath == "" {
		return
	}
	if _, err := os.Stat(s.opts.CookiePath); err != nil {
		s.log.Info("collector: no credential bundle, scraping unauthenticated", "path", s.opts.CookiePath)
		return
	}
	cookies, err := LoadBundle(s.opts.CookiePath, s.log)
	if err != nil {
		s.log.Warn("collector: credential bundle unreadable, scraping unauthenticated",
			"path", s.opts.CookiePath, "error", err)
		return
	}

	applied := 0
	err = chromedp.Run(s.tab,
		chromedp.Navigate(s.platform.BaseURL()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				if err := setCookie(ctx, c); err != nil {
					s.log.Warn("collector: cookie rejected", "name", c.Name, "error", err)
					continue
				}
				applied++
			}
			return nil
		}),
		chromedp.Reload(),
	)
	if err != nil {
		s.log.Warn("collector: credential restore failed, scraping unauthenticated", "error", err)
		return
	}
	s.log.Info("collector: credential bundle applied", "applied", applied, "total", len(cookies))
}

// setCookie maps one bundle entry onto the devtools cookie API.
func setCookie(ctx context.Context, c Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	p := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if ss := sameSiteParam(c.SameSite); ss != "" {
		p = p.WithSameSite(ss)
	}
	if c.Expires > 0 {
		exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		p = p.WithExpires(&exp)
	}
	return p.Do(ctx)
}

func sameSiteParam(v string) network.CookieSameSite {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

// Navigate drives the tab to url, retrying transient load failures up
// to attempts times. A visible retry widget after a failed load earns a
// bounded wait for the feed to progress instead of an immediate
// re-navigation. Exhausting the budget returns ErrNavExhausted; landing
// on the sign-in gate returns ErrLoginWall.
func (s *Session) Navigate(ctx context.Context, url string, attempts int) error {
	if attempts <= 0 {
		attempts = 3
	}
	pg := s.Page()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		navCtx, cancel := context.WithTimeout(s.tab, s.opts.NavTimeout)
		err := chromedp.Run(navCtx,
			chromedp.Navigate(url),
			chromedp.WaitVisible(s.platform.ContentSelector(), chromedp.ByQuery),
		)
		cancel()
		if err == nil {
			var current string
			if err := chromedp.Run(s.tab, chromedp.Location(&current)); err == nil && s.platform.LoginWall(current) {
				return ErrLoginWall
			}
			return nil
		}
		lastErr = err
		s.log.Warn("collector: navigation failed", "url", url, "attempt", attempt, "error", err)

		if pg.RetryVisible(ctx) {
			h, _ := pg.Height(ctx)
			pg.WaitHeightAbove(ctx, h, manualRetryWait)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrNavExhausted, attempts, lastErr)
}

// Open drives the tab to url with none of the feed-readiness or
// login-wall checks Navigate applies. The capture tool uses it to reach
// sign-in pages the scrape loop must never land on.
func (s *Session) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.tab, chromedp.Navigate(url))
}

// ExportCookies reads every cookie the browser holds, in bundle shape.
// Session cookies come back with a zero expiry.
func (s *Session) ExportCookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Cookie
	err := chromedp.Run(s.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			exp := c.Expires
			if exp < 0 {
				exp = 0
			}
			out = append(out, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  exp,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("collector: export cookies: %w", err)
	}
	return out, nil
}

// Page exposes the live-tab surface the collect loop drives.
func (s *Session) Page() pageDriver {
	return &chromePage{sess: s}
}

// Close releases the tab and the browser process.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// chromePage implements pageDriver on the session's tab.
type chromePage struct {
	sess *Session
}

func (p *chromePage) Height(ctx context.Context) (int64, error) {
	var h int64
	err := chromedp.Run(p.sess.tab, chromedp.Evaluate(heightJS, &h))
	return h, err
}

func (p *chromePage) ScrollBottom(ctx context.Context) error {
	return chromedp.Run(p.sess.tab,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (p *chromePage) Pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.sess.opts.ScrollPause):
	}
}

func (p *chromePage) ChallengePresent(ctx context.Context) bool {
	var present bool
	if err := chromedp.Run(p.sess.tab,
		chromedp.EvaluateAsDevTools(p.sess.platform.ChallengeProbe(), &present)); err != nil {
		return false
	}
	return present
}

func (p *chromePage) RetryVisible(ctx context.Context) bool {
	var present bool
	if err := chromedp.Run(p.sess.tab,
		chromedp.EvaluateAsDevTools(p.sess.platform.RetryProbe(), &present)); err != nil {
		return false
	}
	return present
}

// WaitHeightAbove polls every half second until the rendered height
// exceeds h, the timeout lapses, or ctx is done. Reports whether growth
// was seen.
func (p *chromePage) WaitHeightAbove(ctx context.Context, h int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
		if cur, err := p.Height(ctx); err == nil && cur > h {
			return true
		}
	}
	return false
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(p.sess.tab, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}
