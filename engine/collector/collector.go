// Package collector drives a real browser against social platforms and
// turns rendered search feeds into raw records. It owns session
// establishment (credential-bundle restore included), resilient
// navigation, and the scroll-and-collect state machine; everything
// platform-specific (URLs, selectors, challenge probes) lives behind
// the Platform interface.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Field is an extraction result whose absence is meaningful: platforms
// frequently render posts without an author link or timestamp, and
// those records are still worth keeping.
type Field struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// Record is one captured post, immutable once produced. PostedAt keeps
// the platform-native timestamp string; parsing happens downstream.
type Record struct {
	Text     string `json:"text"`
	Author   Field  `json:"author"`
	PostedAt Field  `json:"posted_at"`
}

// Termination is the reason a collection run stopped.
type Termination string

const (
	TermStable    Termination = "stable"         // feed stopped growing
	TermScrollCap Termination = "scroll-cap"     // hard pass limit reached
	TermManual    Termination = "manual-retries" // retry-widget budget spent
	TermCaptcha   Termination = "captcha"        // challenge frame appeared
	TermLoginWall Termination = "login-wall"     // landed on the login gate
	TermCancelled Termination = "cancelled"      // context done
	TermError     Termination = "error"          // session or navigation failure
)

// Aborted reports whether the run ended on a blocking condition rather
// than a normal end-of-feed signal.
func (t Termination) Aborted() bool {
	return t == TermCaptcha || t == TermLoginWall || t == TermError
}

// Options configures browser sessions and scrape pacing. Zero fields
// take defaults.
type Options struct {
	Headless   bool
	CookiePath string // credential bundle; empty means unauthenticated
	UserAgent  string

	NavAttempts int           // navigation retry budget (default 3)
	NavTimeout  time.Duration // per-attempt load timeout (default 45s)
	ScrollPause time.Duration // settle after each scroll (default 1s)

	Rate  float64 // navigations per second (default 0.5)
	Burst int     // navigation burst (default 1)

	Keys KeyPolicy // record uniqueness policy (default DefaultKeyPolicy)
}

func (o Options) withDefaults() Options {
	if o.NavAttempts <= 0 {
		o.NavAttempts = 3
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.ScrollPause <= 0 {
		o.ScrollPause = time.Second
	}
	if o.Rate <= 0 {
		o.Rate = 0.5
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Keys == (KeyPolicy{}) {
		o.Keys = DefaultKeyPolicy
	}
	return o
}

// browserSession is the slice of Session the collector drives. Tests
// substitute a scripted implementation.
type browserSession interface {
	Navigate(ctx context.Context, url string, attempts int) error
	Page() pageDriver
	Close()
}

// Collector runs scrapes for one platform. Each invocation owns a fresh
// browser session; the limiter paces navigations across invocations.
type Collector struct {
	platform Platform
	opts     Options
	limiter  *rate.Limiter
	log      *slog.Logger

	newSession func(ctx context.Context) (browserSession, error) // test seam
}

// New creates a collector for the given platform.
func New(platform Platform, opts Options, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	return &Collector{
		platform: platform,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		log:      log,
		newSession: func(ctx context.Context) (browserSession, error) {
			return NewSession(ctx, platform, opts, log)
		},
	}
}

// Platform returns the adapter this collector scrapes.
func (c *Collector) Platform() Platform { return c.platform }

// Scrape runs one live search for keyword. Failures never surface as
// errors: the caller always gets whatever was collected plus the reason
// collection stopped.
func (c *Collector) Scrape(ctx context.Context, keyword string) ([]Record, Termination) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, TermCancelled
	}

	sess, err := c.newSession(ctx)
	if err != nil {
		c.log.Error("collector: session launch failed", "platform", c.platform.Name(), "error", err)
		return nil, TermError
	}
	defer sess.Close()

	url := c.platform.SearchURL(keyword)
	if err := sess.Navigate(ctx, url, c.opts.NavAttempts); err != nil {
		if errors.Is(err, ErrLoginWall) {
			c.log.Error("collector: login wall, bundle expired or missing", "platform", c.platform.Name())
			return nil, TermLoginWall
		}
		c.log.Error("collector: navigation budget exhausted", "url", url, "error", err)
		return nil, TermError
	}

	records, term := collectLoop(ctx, sess.Page(), c.platform, c.opts.Keys, c.log)
	c.log.Info("collector: scrape finished",
		"platform", c.platform.Name(),
		"keyword", keyword,
		"collected", len(records),
		"termination", string(term),
	)
	return records, term
}

// ScrapeWindows pages through [since, until) in contiguous windows,
// reusing one session. Results are concatenated and deduplicated with
// the same key policy the per-window loops use. A challenge stops
// paging; records gathered up to that point are returned.
func (c *Collector) ScrapeWindows(ctx context.Context, keyword string, since, until time.Time, size time.Duration) ([]Record, Termination) {
	sess, err := c.newSession(ctx)
	if err != nil {
		c.log.Error("collector: session launch failed", "platform", c.platform.Name(), "error", err)
		return nil, TermError
	}
	defer sess.Close()

	var (
		all  []Record
		seen = make(map[string]bool)
		term = TermStable
	)
	for _, w := range WindowsBetween(since, until, size) {
		if ctx.Err() != nil {
			return all, TermCancelled
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return all, TermCancelled
		}

		url := c.platform.WindowedSearchURL(keyword, w)
		if err := sess.Navigate(ctx, url, c.opts.NavAttempts); err != nil {
			if errors.Is(err, ErrLoginWall) {
				c.log.Error("collector: login wall during windowed scrape", "window", w)
				return all, TermLoginWall
			}
			c.log.Warn("collector: window navigation failed, skipping", "window", w, "error", err)
			term = TermError
			continue
		}

		records, t := collectLoop(ctx, sess.Page(), c.platform, c.opts.Keys, c.log)
		for _, r := range records {
			key := c.opts.Keys.Key(r)
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, r)
		}
		c.log.Info("collector: window finished",
			"keyword", keyword,
			"since", w.Since.Format("2006-01-02"),
			"until", w.Until.Format("2006-01-02"),
			"collected", len(records),
			"termination", string(t),
		)
		term = t
		if t.Aborted() {
			break
		}
	}
	return all, term
}
