package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

// keywordScraper is one platform collector's scrape surface.
type keywordScraper interface {
	Scrape(ctx context.Context, keyword string) ([]collector.Record, collector.Termination)
	Platform() collector.Platform
}

// executor runs scrape jobs across all platforms and publishes the
// resulting posts. Jobs arrive serially on the NATS subscription, so a
// job owns the browser for its whole run.
type executor struct {
	// sets holds prebuilt collectors keyed by the job's headless flag;
	// browser options are fixed at construction.
	sets    map[bool][]keywordScraper
	publish func(ctx context.Context, p domain.Post) error
	pending *pendingSet
	log     *slog.Logger
}

// Handle scrapes one keyword on every platform and reports what was
// collected and published.
func (e *executor) Handle(ctx context.Context, job collector.Job) collector.JobResult {
	res := collector.JobResult{
		Keyword:   job.Keyword,
		Platforms: make(map[string]collector.PlatformResult),
	}
	if err := domain.ValidateKeyword(job.Keyword); err != nil {
		e.log.Warn("collector: rejected job", "keyword", job.Keyword, "error", err)
		return res
	}

	e.pending.Add(job.Keyword)
	defer e.pending.Remove(job.Keyword)
	mActiveJobs.Inc()
	defer mActiveJobs.Dec()

	for _, sc := range e.sets[job.Headless] {
		name := sc.Platform().Name()

		start := time.Now()
		records, term := sc.Scrape(ctx, job.Keyword)
		mScrapeDur(name).Since(start)
		mTerminations(string(term)).Inc()
		mRecords(name).Add(int64(len(records)))

		published := 0
		scrapedAt := time.Now().UTC()
		for _, r := range records {
			if err := e.publish(ctx, r.Post(name, job.Keyword, scrapedAt)); err != nil {
				e.log.Error("collector: publish failed", "platform", name, "error", err)
				mPublishErrors.Inc()
				continue
			}
			published++
		}

		res.Platforms[name] = collector.PlatformResult{
			Collected:   len(records),
			Published:   published,
			Termination: string(term),
		}
		res.Collected += len(records)
	}

	e.log.Info("collector: job finished",
		"keyword", job.Keyword,
		"headless", job.Headless,
		"collected", res.Collected,
	)
	return res
}

// keywordLister is the graph surface the scheduler reads.
type keywordLister interface {
	DistinctKeywords(ctx context.Context) ([]string, error)
}

// schedule queues one job per known keyword, skipping keywords already
// queued or running.
func schedule(ctx context.Context, lister keywordLister, pending *pendingSet, enqueue func(ctx context.Context, job collector.Job) error, headless bool, log *slog.Logger) {
	keywords, err := lister.DistinctKeywords(ctx)
	if err != nil {
		log.Error("collector: keyword listing failed", "error", err)
		return
	}

	queued := 0
	for _, kw := range keywords {
		if !pending.Add(kw) {
			mCoalesced.Inc()
			continue
		}
		if err := enqueue(ctx, collector.Job{Keyword: kw, Headless: headless}); err != nil {
			pending.Remove(kw)
			log.Error("collector: enqueue failed", "keyword", kw, "error", err)
			continue
		}
		queued++
	}
	log.Info("collector: schedule round", "known", len(keywords), "queued", queued)
}
