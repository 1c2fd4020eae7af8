// Command collector serves scrape jobs over NATS and periodically
// re-scrapes every keyword the graph already knows. Collected posts go
// to the ingest subject; job replies carry per-platform counts.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/graph"
	"github.com/VoxPulseAI/voxpulse/engine/ingest"
	"github.com/VoxPulseAI/voxpulse/pkg/metrics"
	"github.com/VoxPulseAI/voxpulse/pkg/natsutil"
)

var met = metrics.New()

var (
	mRecords = func(platform string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("voxpulse_collector_records_total", "platform", platform), "Records collected per platform")
	}
	mTerminations = func(reason string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("voxpulse_collector_terminations_total", "reason", reason), "Scrape terminations by reason")
	}
	mScrapeDur = func(platform string) *metrics.Histogram {
		return met.Histogram(metrics.WithLabels("voxpulse_collector_scrape_duration_seconds", "platform", platform), "Per-platform scrape time", nil)
	}
	mPublishErrors = met.Counter("voxpulse_collector_publish_errors_total", "Posts that failed to publish")
	mActiveJobs    = met.Gauge("voxpulse_collector_active_jobs", "Jobs currently scraping")
	mCoalesced     = met.Counter("voxpulse_collector_jobs_coalesced_total", "Scheduler rounds that skipped an already-pending keyword")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		natsURL       = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
		neo4jURL      = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser     = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass     = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		interval      = flag.Duration("interval", 6*time.Hour, "re-scrape interval (0 = one-shot)")
		scrapeOnStart = flag.Bool("scrape-on-start", false, "run a schedule round immediately")
		headless      = flag.Bool("headless", true, "headless browsers for scheduled jobs")
		xCookies      = flag.String("x-cookies", envOr("X_COOKIES_PATH", ""), "X credential bundle path")
		fbCookies     = flag.String("fb-cookies", envOr("FB_COOKIES_PATH", ""), "Facebook credential bundle path")
		metricsPort   = flag.Int("metrics-port", 9093, "Prometheus metrics port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	met.CollectRuntime("voxpulse_collector", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(*natsURL, nats.Name("voxpulse-collector"))
	if err != nil {
		logger.Error("nats connect failed", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		logger.Error("neo4j driver failed", "url", *neo4jURL, "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	graphStore := graph.New(driver)

	cookiePaths := map[string]string{
		"x":        *xCookies,
		"facebook": *fbCookies,
	}
	exec := &executor{
		sets: map[bool][]keywordScraper{
			true:  buildCollectors(cookiePaths, true, logger),
			false: buildCollectors(cookiePaths, false, logger),
		},
		publish: func(ctx context.Context, p domain.Post) error {
			return natsutil.Publish(ctx, nc, ingest.Subject, p)
		},
		pending: newPendingSet(),
		log:     logger,
	}

	sub, err := natsutil.Respond(nc, collector.JobsSubject, exec.Handle)
	if err != nil {
		logger.Error("job subscription failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()
	logger.Info("collector daemon up",
		"subject", collector.JobsSubject,
		"interval", *interval,
		"metrics_port", *metricsPort,
	)

	enqueue := func(ctx context.Context, job collector.Job) error {
		return natsutil.Publish(ctx, nc, collector.JobsSubject, job)
	}

	if *interval <= 0 {
		// One-shot: queue a round for every known keyword, wait for the
		// jobs to drain, exit.
		schedule(ctx, graphStore, exec.pending, enqueue, *headless, logger)
		waitForDrain(ctx, exec.pending)
		return
	}

	if *scrapeOnStart {
		schedule(ctx, graphStore, exec.pending, enqueue, *headless, logger)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			schedule(ctx, graphStore, exec.pending, enqueue, *headless, logger)
		}
	}
}

// buildCollectors constructs one collector per platform with the given
// headless mode.
func buildCollectors(cookiePaths map[string]string, headless bool, logger *slog.Logger) []keywordScraper {
	platforms := []collector.Platform{
		collector.PlatformX(),
		collector.PlatformFacebook(),
	}
	out := make([]keywordScraper, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, collector.New(p, collector.Options{
			Headless:   headless,
			CookiePath: cookiePaths[p.Name()],
		}, logger))
	}
	return out
}

// waitForDrain polls until every queued job has finished or the context
// is cancelled. Keywords are marked pending at enqueue time, so an
// empty set means the round has drained.
func waitForDrain(ctx context.Context, pending *pendingSet) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pending.Len() == 0 {
				return
			}
		}
	}
}
