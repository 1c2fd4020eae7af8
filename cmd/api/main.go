// Command api serves the VoxPulse HTTP API: scrape triggers, keyword
// imports, sentiment summaries, and store snapshots.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
	"github.com/VoxPulseAI/voxpulse/engine/docstore"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/graph"
	"github.com/VoxPulseAI/voxpulse/engine/report"
	"github.com/VoxPulseAI/voxpulse/pkg/metrics"
	"github.com/VoxPulseAI/voxpulse/pkg/mid"
	"github.com/VoxPulseAI/voxpulse/pkg/natsutil"
	"github.com/VoxPulseAI/voxpulse/pkg/repo"
)

var met = metrics.New()

var (
	mScrapeRequests = func(outcome string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("voxpulse_api_scrape_requests_total", "outcome", outcome), "Scrape dispatches by outcome")
	}
	mImportQueued   = met.Counter("voxpulse_api_import_keywords_total", "Keywords queued via CSV import")
	mSummaryQueries = met.Counter("voxpulse_api_summary_queries_total", "Summary endpoint hits")
	mScrapeDur      = met.Histogram("voxpulse_api_scrape_duration_seconds", "End-to-end scrape dispatch time", nil)
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	NATSURL    string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	CORSOrigin string
	ScrapeWait time.Duration
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		NATSURL:    envOr("NATS_URL", nats.DefaultURL),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "voxpulse_posts"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		ScrapeWait: envDur("SCRAPE_WAIT", 5*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDur reads a duration from the environment; unparseable values fall
// back silently because config loading has no logger yet.
func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("voxpulse-api"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	graphStore := graph.New(driver)

	// --- Connect to Qdrant ---
	archive, err := docstore.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer archive.Close()

	reports := report.New(graphStore, archive, report.DefaultOptions(), logger)
	dispatch := &natsDispatcher{nc: nc, wait: cfg.ScrapeWait}

	met.CollectRuntime("voxpulse_api", 15*time.Second)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/v1/scrape", handleScrape(dispatch, logger))
	mux.HandleFunc("POST /api/v1/keywords/import", handleImport(dispatch, logger))
	mux.HandleFunc("GET /api/v1/summary", handleSummary(reports, logger))
	mux.HandleFunc("GET /api/v1/posts", handlePosts(reports, logger))
	mux.HandleFunc("GET /api/v1/posts/{uid}", handlePost(reports, logger))
	mux.HandleFunc("GET /api/v1/stats/snapshot", handleSnapshot(reports, logger))
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("voxpulse-api"),
	)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Scrape dispatches block until the collector replies.
		WriteTimeout: cfg.ScrapeWait + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// dispatcher sends scrape jobs to the collector daemon.
type dispatcher interface {
	// Dispatch runs a job and waits for the collector's reply.
	Dispatch(ctx context.Context, job collector.Job) (collector.JobResult, error)
	// Enqueue fires a job without waiting.
	Enqueue(ctx context.Context, job collector.Job) error
}

type natsDispatcher struct {
	nc   *nats.Conn
	wait time.Duration
}

func (d *natsDispatcher) Dispatch(ctx context.Context, job collector.Job) (collector.JobResult, error) {
	return natsutil.RequestTimeout[collector.Job, collector.JobResult](ctx, d.nc, collector.JobsSubject, job, d.wait)
}

func (d *natsDispatcher) Enqueue(ctx context.Context, job collector.Job) error {
	return natsutil.Publish(ctx, d.nc, collector.JobsSubject, job)
}

// reporter is the slice of report.Service the read handlers use.
type reporter interface {
	Summary(ctx context.Context, keyword string) (report.Summary, error)
	Recent(ctx context.Context, keyword string, limit int) ([]domain.Post, error)
	Post(ctx context.Context, uid string) (domain.Post, error)
	Snapshot(ctx context.Context) (report.Snapshot, error)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ScrapeRequest is the JSON body for POST /api/v1/scrape. Either field
// works; both together are merged.
type ScrapeRequest struct {
	Keyword  string   `json:"keyword,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Headless *bool    `json:"headless,omitempty"`
}

// ScrapeResponse reports per-keyword results for a scrape request.
type ScrapeResponse struct {
	Results []collector.JobResult `json:"results"`
	Total   int                   `json:"total"`
}

func handleScrape(d dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		keywords := gatherKeywords(req)
		if len(keywords) == 0 {
			http.Error(w, `{"error":"keyword is required"}`, http.StatusBadRequest)
			return
		}

		headless := true
		if req.Headless != nil {
			headless = *req.Headless
		}

		start := time.Now()
		resp := ScrapeResponse{Results: make([]collector.JobResult, 0, len(keywords))}
		for _, kw := range keywords {
			res, err := d.Dispatch(r.Context(), collector.Job{Keyword: kw, Headless: headless})
			if err != nil {
				// A failed scrape is still a 200: the caller learns the
				// keyword produced nothing this round.
				logger.Error("scrape dispatch failed", "keyword", kw, "err", err)
				mScrapeRequests("error").Inc()
				res = collector.JobResult{Keyword: kw}
			} else {
				mScrapeRequests("ok").Inc()
			}
			resp.Results = append(resp.Results, res)
			resp.Total += res.Collected
		}
		mScrapeDur.Since(start)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// gatherKeywords merges, trims, validates, and deduplicates the request
// keywords, preserving order.
func gatherKeywords(req ScrapeRequest) []string {
	raw := make([]string, 0, len(req.Keywords)+1)
	if req.Keyword != "" {
		raw = append(raw, req.Keyword)
	}
	raw = append(raw, req.Keywords...)

	seen := make(map[string]bool)
	var out []string
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if domain.ValidateKeyword(kw) != nil || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func handleImport(d dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"file field is required"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()

		keywords, err := keywordsFromCSV(file)
		if err != nil {
			http.Error(w, `{"error":"malformed csv"}`, http.StatusBadRequest)
			return
		}
		if len(keywords) == 0 {
			http.Error(w, `{"error":"no keywords in csv"}`, http.StatusBadRequest)
			return
		}

		queued := 0
		for _, kw := range keywords {
			if err := d.Enqueue(r.Context(), collector.Job{Keyword: kw, Headless: true}); err != nil {
				logger.Error("import enqueue failed", "keyword", kw, "err", err)
				continue
			}
			queued++
		}
		mImportQueued.Add(int64(queued))
		logger.Info("keywords imported", "queued", queued)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]int{"queued": queued})
	}
}

func handleSummary(svc reporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
		if keyword == "" {
			http.Error(w, `{"error":"keyword is required"}`, http.StatusBadRequest)
			return
		}
		mSummaryQueries.Inc()

		sum, err := svc.Summary(r.Context(), keyword)
		if err != nil {
			logger.Error("summary failed", "keyword", keyword, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sum)
	}
}

func handlePosts(svc reporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
		if keyword == "" {
			http.Error(w, `{"error":"keyword is required"}`, http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		posts, err := svc.Recent(r.Context(), keyword, limit)
		if err != nil {
			logger.Error("posts query failed", "keyword", keyword, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if posts == nil {
			posts = []domain.Post{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(posts)
	}
}

func handlePost(svc reporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.PathValue("uid")

		p, err := svc.Post(r.Context(), uid)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				http.Error(w, `{"error":"post not found"}`, http.StatusNotFound)
				return
			}
			logger.Error("post lookup failed", "uid", uid, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	}
}

func handleSnapshot(svc reporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context())
		if err != nil {
			logger.Error("snapshot failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}

// keywordsFromCSV extracts keywords from an uploaded CSV: the "keyword"
// column when a header names one, the first column otherwise. Rows that
// fail keyword validation are skipped.
func keywordsFromCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := 0
	start := 0
	for i, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(name), "keyword") {
			col = i
			start = 1
			break
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		kw := strings.TrimSpace(row[col])
		if domain.ValidateKeyword(kw) != nil || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out, nil
}
