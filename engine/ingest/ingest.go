// Package ingest enriches collected posts and writes them to the graph
// and the vector archive. The pipeline runs validate, clean, classify,
// tag, signals, persist; the consumer wraps it with dedup, retry, and a
// dead letter queue.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/fn"
	"github.com/VoxPulseAI/voxpulse/pkg/natsutil"
	"github.com/VoxPulseAI/voxpulse/pkg/postnlp"
	"github.com/VoxPulseAI/voxpulse/pkg/resilience"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

// Archiver is the vector-archive surface the pipeline writes to.
type Archiver interface {
	UpsertPost(ctx context.Context, p domain.Post) error
}

// GraphWriter is the graph surface the pipeline writes to.
type GraphWriter interface {
	MergePost(ctx context.Context, p domain.Post) error
}

// Deps holds the external dependencies of the pipeline and consumer.
type Deps struct {
	Classifier sentiment.Classifier
	Archive    Archiver
	Graph      GraphWriter
	Config     Config

	// DeduplicateF reports whether a post UID is already stored; nil
	// disables the check.
	DeduplicateF func(ctx context.Context, uid string) (bool, error)
	// OnResult observes every pipeline run; the worker hooks metrics in
	// here.
	OnResult func(p domain.Post, err error, took time.Duration)

	Logger  *slog.Logger
	Limiter *resilience.Limiter
	Breaker *resilience.Breaker
}

// --- Pipeline stages ---

// Validate gates the pipeline on the domain validation rules.
var Validate fn.Stage[domain.Post, domain.Post] = func(_ context.Context, p domain.Post) fn.Result[domain.Post] {
	if err := domain.ValidatePost(p); err != nil {
		return fn.Err[domain.Post](err)
	}
	return fn.Ok(p)
}

// Clean derives the analysis text the classifier sees. The original
// text is kept untouched.
var Clean fn.Stage[domain.Post, domain.Post] = func(_ context.Context, p domain.Post) fn.Result[domain.Post] {
	p.CleanText = postnlp.Clean(p.Text)
	return fn.Ok(p)
}

// NewClassify calls the sentiment service on the cleaned text, falling
// back to the raw text when cleaning produced nothing.
func NewClassify(classifier sentiment.Classifier) fn.Stage[domain.Post, domain.Post] {
	return func(ctx context.Context, p domain.Post) fn.Result[domain.Post] {
		text := p.CleanText
		if text == "" {
			text = p.Text
		}
		res, err := classifier.Classify(ctx, text)
		if err != nil {
			return fn.Err[domain.Post](fmt.Errorf("classify: %w", err))
		}
		p.Sentiment = res.Label
		p.Scores = res.Scores
		p.Language = res.Language
		return fn.Ok(p)
	}
}

// NewTag buckets the post against the project timeline using the
// platform timestamp when it parses, the scrape time otherwise.
func NewTag(cfg Config) fn.Stage[domain.Post, domain.Post] {
	return func(_ context.Context, p domain.Post) fn.Result[domain.Post] {
		p.Phase = domain.PhaseOf(p.PostedTime(), cfg.ProjectStart, cfg.ProjectEnd)
		return fn.Ok(p)
	}
}

// Signals extracts hashtags, mentions, and links from the raw text.
var Signals fn.Stage[domain.Post, domain.Post] = func(_ context.Context, p domain.Post) fn.Result[domain.Post] {
	sig := postnlp.Extract(p.Text)
	p.Hashtags = sig.Hashtags
	p.Mentions = sig.Mentions
	p.Links = sig.Links
	return fn.Ok(p)
}

// NewPersist writes the enriched post to both stores. Store errors are
// logged and swallowed: a flaky sink must not re-trigger classification
// through the retry path.
func NewPersist(archive Archiver, gw GraphWriter, log *slog.Logger) fn.Stage[domain.Post, domain.Post] {
	return func(ctx context.Context, p domain.Post) fn.Result[domain.Post] {
		if err := gw.MergePost(ctx, p); err != nil {
			log.Error("ingest: graph merge failed", "error", err, "uid", p.UID())
		}
		if err := archive.UpsertPost(ctx, p); err != nil {
			log.Error("ingest: archive upsert failed", "error", err, "uid", p.UID())
		}
		return fn.Ok(p)
	}
}

// NewPipeline wires the stages. The classify stage alone gets the
// limiter and breaker: it is the only remote call with its own failure
// economics.
func NewPipeline(deps Deps) fn.Stage[domain.Post, domain.Post] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	classify := NewClassify(deps.Classifier)
	if deps.Breaker != nil {
		classify = resilience.BreakerStage(deps.Breaker, classify)
	}
	if deps.Limiter != nil {
		classify = resilience.LimiterStageWait(deps.Limiter, classify)
	}

	return fn.Pipeline(
		fn.TracedStage("ingest.validate", Validate),
		fn.TracedStage("ingest.clean", Clean),
		fn.TracedStage("ingest.classify", classify),
		fn.TracedStage("ingest.tag", NewTag(deps.Config)),
		fn.TracedStage("ingest.signals", Signals),
		fn.TracedStage("ingest.persist", NewPersist(deps.Archive, deps.Graph, log)),
	)
}

// StartConsumer subscribes to the ingest subject and runs every post
// through the pipeline. Invalid posts are dropped, transient failures
// are re-published with a retry header, and posts that fail MaxRetries
// times land on the DLQ.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var post domain.Post
		if err := json.Unmarshal(msg.Data, &post); err != nil {
			log.Error("ingest: bad message", "error", err)
			return
		}

		ctx := context.Background()

		if deps.DeduplicateF != nil {
			exists, err := deps.DeduplicateF(ctx, post.UID())
			if err != nil {
				log.Warn("ingest: dedup check failed", "error", err, "uid", post.UID())
			} else if exists {
				log.Debug("ingest: duplicate skipped", "uid", post.UID())
				return
			}
		}

		retries := retriesFrom(msg.Header)

		start := time.Now()
		out, err := pipeline(ctx, post).Unwrap()
		if err != nil {
			out = post
		}
		if deps.OnResult != nil {
			deps.OnResult(out, err, time.Since(start))
		}

		if err == nil {
			log.Info("ingest: stored",
				"uid", out.UID(),
				"sentiment", out.Sentiment,
				"phase", out.Phase,
			)
			return
		}

		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			// Retrying cannot fix a post that fails validation.
			log.Warn("ingest: invalid post dropped", "error", err, "platform", post.Platform)
			return
		}

		retries++
		log.Error("ingest: pipeline failed", "error", err, "uid", post.UID(), "retry", retries)

		if retries >= MaxRetries {
			dlq := DLQMessage{Post: post, Error: err.Error(), Retries: retries}
			if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
				log.Error("ingest: dlq publish failed", "error", perr)
			}
			return
		}

		retry := nats.NewMsg(Subject)
		retry.Data = msg.Data
		retry.Header.Set(retryHeader, strconv.Itoa(retries))
		if perr := nc.PublishMsg(retry); perr != nil {
			log.Error("ingest: retry publish failed", "error", perr)
		}
	})
}

func retriesFrom(h nats.Header) int {
	if h == nil {
		return 0
	}
	n, err := strconv.Atoi(h.Get(retryHeader))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
