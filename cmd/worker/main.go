// Command worker consumes collected posts from NATS, enriches them
// through the ingest pipeline, and persists them to Neo4j and Qdrant.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/VoxPulseAI/voxpulse/engine/docstore"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/graph"
	"github.com/VoxPulseAI/voxpulse/engine/ingest"
	"github.com/VoxPulseAI/voxpulse/pkg/metrics"
	"github.com/VoxPulseAI/voxpulse/pkg/resilience"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

var met = metrics.New()

var (
	mPostsTotal = func(outcome string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("voxpulse_worker_posts_total", "outcome", outcome), "Pipeline runs by outcome")
	}
	mSentiments = func(label string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("voxpulse_worker_sentiments_total", "label", label), "Stored posts by sentiment label")
	}
	mPipelineDur = met.Histogram("voxpulse_worker_pipeline_duration_seconds", "Per-post pipeline time", nil)
	mDedupHits   = met.Counter("voxpulse_worker_dedup_hits_total", "Posts skipped as already stored")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseDate reads a project boundary in YYYY-MM-DD form; empty means an
// open bound.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func main() {
	var (
		natsURL      = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
		neo4jURL     = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser    = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		qdrantAddr   = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection   = flag.String("collection", envOr("QDRANT_COLLECTION", "voxpulse_posts"), "Qdrant collection name")
		sentimentURL = flag.String("sentiment", envOr("SENTIMENT_URL", "http://localhost:8000"), "sentiment classifier base URL")
		rate         = flag.Float64("classify-rate", 10, "classifier calls per second")
		burst        = flag.Int("classify-burst", 5, "classifier call burst")
		breakAfter   = flag.Int("break-after", 5, "consecutive classifier failures before the breaker opens")
		breakFor     = flag.Duration("break-for", 30*time.Second, "how long an open breaker rejects")
		projectStart = flag.String("project-start", envOr("PROJECT_START_DATE", ""), "project start (YYYY-MM-DD, empty = open)")
		projectEnd   = flag.String("project-end", envOr("PROJECT_END_DATE", ""), "project end (YYYY-MM-DD, empty = open)")
		metricsPort  = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	met.CollectRuntime("voxpulse_worker", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(*natsURL, nats.Name("voxpulse-worker"))
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
	if err := driver.VerifyConnectivity(ctx); err != nil {
		logger.Error("neo4j unreachable", "url", *neo4jURL, "error", err)
		os.Exit(1)
	}

	graphStore := graph.New(driver)
	if err := graphStore.EnsureSchema(ctx); err != nil {
		// Constraint creation needs schema rights; merges work without.
		logger.Warn("schema setup failed, continuing", "error", err)
	}

	archive, err := docstore.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "addr", *qdrantAddr, "error", err)
		os.Exit(1)
	}
	defer archive.Close()
	if err := archive.EnsureCollection(ctx); err != nil {
		logger.Error("qdrant collection setup failed", "collection", *collection, "error", err)
		os.Exit(1)
	}

	start, err := parseDate(*projectStart)
	if err != nil {
		logger.Error("bad project start date", "value", *projectStart, "error", err)
		os.Exit(1)
	}
	end, err := parseDate(*projectEnd)
	if err != nil {
		logger.Error("bad project end date", "value", *projectEnd, "error", err)
		os.Exit(1)
	}

	deps := ingest.Deps{
		Classifier: sentiment.NewClient(*sentimentURL),
		Archive:    archive,
		Graph:      graphStore,
		Config:     ingest.Config{ProjectStart: start, ProjectEnd: end},

		DeduplicateF: newDeduper(graphStore),
		OnResult: func(p domain.Post, err error, took time.Duration) {
			mPipelineDur.Observe(took.Seconds())
			switch {
			case err == nil:
				mPostsTotal("ok").Inc()
				mSentiments(p.Sentiment).Inc()
			case isValidation(err):
				mPostsTotal("invalid").Inc()
			default:
				mPostsTotal("error").Inc()
			}
		},

		Logger:  logger,
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: *rate, Burst: *burst}),
		Breaker: resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: *breakAfter, Timeout: *breakFor}),
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		logger.Error("ingest subscription failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logger.Info("worker up",
		"subject", ingest.Subject,
		"classifier", *sentimentURL,
		"metrics_port", *metricsPort,
		"project_start", *projectStart,
		"project_end", *projectEnd,
	)

	<-ctx.Done()
	logger.Info("shutting down")
}

func isValidation(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}

// existsChecker is the graph surface the deduper needs.
type existsChecker interface {
	PostExists(ctx context.Context, uid string) (bool, error)
}

// newDeduper checks the graph for a post's UID, caching confirmed hits
// so repeat deliveries of stored posts skip the round trip.
func newDeduper(gs existsChecker) func(ctx context.Context, uid string) (bool, error) {
	var mu sync.Mutex
	stored := make(map[string]bool)

	return func(ctx context.Context, uid string) (bool, error) {
		mu.Lock()
		hit := stored[uid]
		mu.Unlock()
		if hit {
			mDedupHits.Inc()
			return true, nil
		}

		exists, err := gs.PostExists(ctx, uid)
		if err != nil {
			return false, err
		}
		if exists {
			mu.Lock()
			stored[uid] = true
			mu.Unlock()
			mDedupHits.Inc()
		}
		return exists, nil
	}
}
