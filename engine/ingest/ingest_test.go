package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/resilience"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collectedPost() domain.Post {
	return domain.Post{
		Platform:  "x",
		Keyword:   "metro",
		Text:      "Tried the new #metro line with @cityworks, so smooth! https://example.com/line",
		Author:    "@rider_joe",
		PostedAt:  "2024-03-01T10:30:00.000Z",
		ScrapedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeClassifier struct {
	res   sentiment.Result
	err   error
	calls int
	texts []string
}

func (c *fakeClassifier) Classify(_ context.Context, text string) (sentiment.Result, error) {
	c.calls++
	c.texts = append(c.texts, text)
	return c.res, c.err
}

func positiveClassifier() *fakeClassifier {
	return &fakeClassifier{res: sentiment.Result{
		Label:    sentiment.LabelPositive,
		Scores:   sentiment.Scores{Positive: 0.8, Neutral: 0.2, Compound: 0.7},
		Language: "en",
	}}
}

type fakeArchive struct {
	err   error
	posts []domain.Post
}

func (a *fakeArchive) UpsertPost(_ context.Context, p domain.Post) error {
	a.posts = append(a.posts, p)
	return a.err
}

type fakeGraph struct {
	err   error
	posts []domain.Post
}

func (g *fakeGraph) MergePost(_ context.Context, p domain.Post) error {
	g.posts = append(g.posts, p)
	return g.err
}

func testDeps(cls sentiment.Classifier, archive *fakeArchive, gw *fakeGraph) Deps {
	return Deps{
		Classifier: cls,
		Archive:    archive,
		Graph:      gw,
		Config: Config{
			ProjectStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ProjectEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Logger: testLogger(),
	}
}

func TestPipelineEnrichesAndStores(t *testing.T) {
	cls := positiveClassifier()
	archive := &fakeArchive{}
	gw := &fakeGraph{}
	pipeline := NewPipeline(testDeps(cls, archive, gw))

	out, err := pipeline(context.Background(), collectedPost()).Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if out.CleanText == "" || out.CleanText == out.Text {
		t.Fatalf("clean text not derived: %q", out.CleanText)
	}
	if out.Sentiment != sentiment.LabelPositive || out.Language != "en" {
		t.Fatalf("classification not applied: %+v", out)
	}
	if out.Scores.Positive != 0.8 {
		t.Fatalf("scores not applied: %+v", out.Scores)
	}
	if out.Phase != domain.PhaseDuring {
		t.Fatalf("phase %q, want during", out.Phase)
	}
	if len(out.Hashtags) != 1 || out.Hashtags[0] != "metro" {
		t.Fatalf("hashtags %v", out.Hashtags)
	}
	if len(out.Mentions) != 1 || out.Mentions[0] != "cityworks" {
		t.Fatalf("mentions %v", out.Mentions)
	}
	if len(out.Links) != 1 {
		t.Fatalf("links %v", out.Links)
	}

	if len(gw.posts) != 1 || len(archive.posts) != 1 {
		t.Fatalf("stores got %d/%d posts, want 1/1", len(gw.posts), len(archive.posts))
	}
	if gw.posts[0].Sentiment != sentiment.LabelPositive {
		t.Fatal("graph received the unenriched post")
	}
}

func TestPipelineRejectsInvalidPost(t *testing.T) {
	cls := positiveClassifier()
	archive := &fakeArchive{}
	gw := &fakeGraph{}
	pipeline := NewPipeline(testDeps(cls, archive, gw))

	p := collectedPost()
	p.Text = "   "
	_, err := pipeline(context.Background(), p).Unwrap()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %v is not a ValidationError", err)
	}
	if cls.calls != 0 {
		t.Fatal("classifier called for an invalid post")
	}
	if len(archive.posts) != 0 || len(gw.posts) != 0 {
		t.Fatal("stores touched for an invalid post")
	}
}

func TestClassifyReceivesCleanedText(t *testing.T) {
	cls := positiveClassifier()
	pipeline := NewPipeline(testDeps(cls, &fakeArchive{}, &fakeGraph{}))

	if _, err := pipeline(context.Background(), collectedPost()).Unwrap(); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if len(cls.texts) != 1 {
		t.Fatalf("classifier called %d times", len(cls.texts))
	}
	got := cls.texts[0]
	if got != "Tried the new metro line with , so smooth!" {
		t.Fatalf("classifier text %q", got)
	}
}

func TestClassifyFallsBackToRawText(t *testing.T) {
	cls := positiveClassifier()
	stage := NewClassify(cls)

	p := collectedPost()
	p.CleanText = ""
	if _, err := stage(context.Background(), p).Unwrap(); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.texts[0] != p.Text {
		t.Fatalf("classifier text %q, want raw text", cls.texts[0])
	}
}

func TestClassifierFailureStopsPipeline(t *testing.T) {
	cls := &fakeClassifier{err: errors.New("service down")}
	archive := &fakeArchive{}
	gw := &fakeGraph{}
	pipeline := NewPipeline(testDeps(cls, archive, gw))

	_, err := pipeline(context.Background(), collectedPost()).Unwrap()
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		t.Fatal("classifier failure must not look like a validation error")
	}
	if len(archive.posts) != 0 || len(gw.posts) != 0 {
		t.Fatal("stores touched after classifier failure")
	}
}

func TestPersistSwallowsStoreFailures(t *testing.T) {
	archive := &fakeArchive{err: errors.New("qdrant down")}
	gw := &fakeGraph{err: errors.New("neo4j down")}
	stage := NewPersist(archive, gw, testLogger())

	res := stage(context.Background(), collectedPost())
	if res.IsErr() {
		_, err := res.Unwrap()
		t.Fatalf("persist surfaced a store error: %v", err)
	}
	if len(archive.posts) != 1 || len(gw.posts) != 1 {
		t.Fatal("a failing sink must not skip the other")
	}
}

func TestTagPhases(t *testing.T) {
	cfg := Config{
		ProjectStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ProjectEnd:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	stage := NewTag(cfg)

	tests := []struct {
		name     string
		postedAt string
		want     domain.Phase
	}{
		{"before window", "2024-02-28T12:00:00Z", domain.PhaseBefore},
		{"at start", "2024-03-01T00:00:00Z", domain.PhaseDuring},
		{"inside window", "2024-04-15T12:00:00Z", domain.PhaseDuring},
		{"at end", "2024-06-01T00:00:00Z", domain.PhaseDuring},
		{"after window", "2024-06-02T00:00:00Z", domain.PhaseAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := collectedPost()
			p.PostedAt = tt.postedAt
			out, err := stage(context.Background(), p).Unwrap()
			if err != nil {
				t.Fatalf("tag: %v", err)
			}
			if out.Phase != tt.want {
				t.Fatalf("phase %q, want %q", out.Phase, tt.want)
			}
		})
	}
}

func TestTagFallsBackToScrapeTime(t *testing.T) {
	cfg := Config{
		ProjectStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	p := collectedPost()
	p.PostedAt = "3h" // relative, unparseable
	p.ScrapedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	out, err := NewTag(cfg)(context.Background(), p).Unwrap()
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if out.Phase != domain.PhaseBefore {
		t.Fatalf("phase %q, want before (scrape-time fallback)", out.Phase)
	}
}

func TestPipelineWithLimiterAndBreaker(t *testing.T) {
	deps := testDeps(positiveClassifier(), &fakeArchive{}, &fakeGraph{})
	deps.Limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: 1000, Burst: 10})
	deps.Breaker = resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 3})
	pipeline := NewPipeline(deps)

	out, err := pipeline(context.Background(), collectedPost()).Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if out.Sentiment != sentiment.LabelPositive {
		t.Fatalf("enrichment lost through guards: %+v", out)
	}
}

func TestBreakerTripsOnRepeatedClassifierFailure(t *testing.T) {
	deps := testDeps(&fakeClassifier{err: errors.New("down")}, &fakeArchive{}, &fakeGraph{})
	deps.Breaker = resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Hour})
	pipeline := NewPipeline(deps)

	for i := 0; i < 3; i++ {
		if res := pipeline(context.Background(), collectedPost()); !res.IsErr() {
			t.Fatalf("run %d: expected error", i)
		}
	}
	if deps.Breaker.State() != resilience.StateOpen {
		t.Fatalf("breaker state %v, want open", deps.Breaker.State())
	}
}

func TestRetriesFrom(t *testing.T) {
	tests := []struct {
		name   string
		header nats.Header
		want   int
	}{
		{"nil header", nil, 0},
		{"missing key", nats.Header{}, 0},
		{"valid", nats.Header{retryHeader: []string{"2"}}, 2},
		{"garbage", nats.Header{retryHeader: []string{"junk"}}, 0},
		{"negative", nats.Header{retryHeader: []string{"-1"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retriesFrom(tt.header); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}
