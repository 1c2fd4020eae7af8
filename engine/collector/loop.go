package collector

import (
	"context"
	"log/slog"
	"time"
)

const (
	maxScrollPasses   = 50
	stablePassLimit   = 2
	manualRetryBudget = 3
	manualRetryWait   = 60 * time.Second
)

// pageDriver is the live-tab surface the collect loop drives. The
// chromedp-backed implementation lives in session.go; tests script a
// fake so loop behavior is checked without a browser.
type pageDriver interface {
	Height(ctx context.Context) (int64, error)
	ScrollBottom(ctx context.Context) error
	Pause(ctx context.Context)
	ChallengePresent(ctx context.Context) bool
	RetryVisible(ctx context.Context) bool
	WaitHeightAbove(ctx context.Context, h int64, timeout time.Duration) bool
	HTML(ctx context.Context) (string, error)
}

// collectLoop scrolls the feed and extracts records each pass until the
// page stops growing, a challenge interrupts, or a hard cap is hit.
// Records come back in first-seen order; duplicates under the key
// policy are dropped as they appear.
func collectLoop(ctx context.Context, pg pageDriver, platform Platform, keys KeyPolicy, log *slog.Logger) ([]Record, Termination) {
	var (
		records    []Record
		seen       = make(map[string]bool)
		lastHeight int64 = -1
		stable     int
		retries    int
	)

	for pass := 0; pass < maxScrollPasses; pass++ {
		if ctx.Err() != nil {
			return records, TermCancelled
		}
		if pg.ChallengePresent(ctx) {
			log.Warn("collect: challenge frame present, aborting", "pass", pass, "collected", len(records))
			return records, TermCaptcha
		}

		html, err := pg.HTML(ctx)
		if err != nil {
			log.Warn("collect: page read failed", "pass", pass, "error", err)
		} else {
			recs, err := platform.Extract(html)
			if err != nil {
				log.Warn("collect: extraction failed", "pass", pass, "error", err)
			}
			for _, r := range recs {
				key := keys.Key(r)
				if seen[key] {
					continue
				}
				seen[key] = true
				records = append(records, r)
			}
		}

		if err := pg.ScrollBottom(ctx); err != nil {
			log.Warn("collect: scroll failed", "pass", pass, "error", err)
		}
		pg.Pause(ctx)

		// A visible retry widget means the feed stalled, not ended.
		// Wait for growth instead of counting the pass as stable.
		if pg.RetryVisible(ctx) {
			retries++
			if retries > manualRetryBudget {
				log.Warn("collect: retry budget spent, treating feed as exhausted", "encounters", retries)
				return records, TermManual
			}
			log.Info("collect: retry widget showing, waiting for feed growth", "encounter", retries)
			pg.WaitHeightAbove(ctx, lastHeight, manualRetryWait)
			continue
		}

		h, err := pg.Height(ctx)
		if err != nil {
			log.Warn("collect: height probe failed", "pass", pass, "error", err)
			continue
		}
		if h == lastHeight {
			stable++
			if stable >= stablePassLimit {
				return records, TermStable
			}
			continue
		}
		stable = 0
		lastHeight = h
	}

	return records, TermScrollCap
}
