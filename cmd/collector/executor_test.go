package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	name     string
	records  []collector.Record
	term     collector.Termination
	keywords []string
}

func (s *fakeScraper) Scrape(_ context.Context, keyword string) ([]collector.Record, collector.Termination) {
	s.keywords = append(s.keywords, keyword)
	return s.records, s.term
}

func (s *fakeScraper) Platform() collector.Platform {
	p, err := collector.ByName(s.name)
	if err != nil {
		panic(err)
	}
	return p
}

func rec(text string) collector.Record {
	return collector.Record{
		Text:     text,
		Author:   collector.Field{Value: "@a", Found: true},
		PostedAt: collector.Field{Value: "2024-03-01T10:00:00.000Z", Found: true},
	}
}

func newTestExecutor(scrapers []keywordScraper, publishErr error) (*executor, *[]domain.Post) {
	var published []domain.Post
	e := &executor{
		sets: map[bool][]keywordScraper{
			true:  scrapers,
			false: scrapers,
		},
		publish: func(_ context.Context, p domain.Post) error {
			if publishErr != nil {
				return publishErr
			}
			published = append(published, p)
			return nil
		},
		pending: newPendingSet(),
		log:     discardLogger(),
	}
	return e, &published
}

func TestHandlePublishesEveryRecord(t *testing.T) {
	x := &fakeScraper{name: "x", records: []collector.Record{rec("a"), rec("b")}, term: collector.TermStable}
	fb := &fakeScraper{name: "facebook", records: []collector.Record{rec("c")}, term: collector.TermStable}
	e, published := newTestExecutor([]keywordScraper{x, fb}, nil)

	res := e.Handle(context.Background(), collector.Job{Keyword: "metro", Headless: true})

	if res.Collected != 3 {
		t.Fatalf("collected %d, want 3", res.Collected)
	}
	if len(*published) != 3 {
		t.Fatalf("published %d posts, want 3", len(*published))
	}
	if got := res.Platforms["x"]; got.Collected != 2 || got.Published != 2 || got.Termination != "stable" {
		t.Fatalf("platform result %+v", got)
	}
	p := (*published)[0]
	if p.Platform != "x" || p.Keyword != "metro" || p.Text != "a" {
		t.Fatalf("post %+v", p)
	}
	if p.ScrapedAt.IsZero() {
		t.Fatal("scraped_at not stamped")
	}
	if len(x.keywords) != 1 || x.keywords[0] != "metro" {
		t.Fatalf("scraper saw %v", x.keywords)
	}
}

func TestHandleReportsPublishFailures(t *testing.T) {
	x := &fakeScraper{name: "x", records: []collector.Record{rec("a"), rec("b")}, term: collector.TermStable}
	e, _ := newTestExecutor([]keywordScraper{x}, errors.New("nats down"))

	res := e.Handle(context.Background(), collector.Job{Keyword: "metro", Headless: true})

	got := res.Platforms["x"]
	if got.Collected != 2 || got.Published != 0 {
		t.Fatalf("platform result %+v, want collected 2 published 0", got)
	}
}

func TestHandleKeepsAbortedTermination(t *testing.T) {
	x := &fakeScraper{name: "x", records: []collector.Record{rec("partial")}, term: collector.TermCaptcha}
	e, published := newTestExecutor([]keywordScraper{x}, nil)

	res := e.Handle(context.Background(), collector.Job{Keyword: "metro", Headless: true})

	if res.Platforms["x"].Termination != "captcha" {
		t.Fatalf("termination %q", res.Platforms["x"].Termination)
	}
	if len(*published) != 1 {
		t.Fatal("partial records should still publish")
	}
}

func TestHandleRejectsInvalidKeyword(t *testing.T) {
	x := &fakeScraper{name: "x", term: collector.TermStable}
	e, _ := newTestExecutor([]keywordScraper{x}, nil)

	res := e.Handle(context.Background(), collector.Job{Keyword: "  ", Headless: true})

	if res.Collected != 0 || len(x.keywords) != 0 {
		t.Fatalf("invalid keyword reached the scrapers: %+v", res)
	}
}

func TestHandleClearsPending(t *testing.T) {
	x := &fakeScraper{name: "x", term: collector.TermStable}
	e, _ := newTestExecutor([]keywordScraper{x}, nil)
	e.pending.Add("metro")

	e.Handle(context.Background(), collector.Job{Keyword: "metro", Headless: true})

	if e.pending.Has("metro") {
		t.Fatal("keyword still pending after the job finished")
	}
}

type fakeLister struct {
	keywords []string
	err      error
}

func (f *fakeLister) DistinctKeywords(context.Context) ([]string, error) {
	return f.keywords, f.err
}

func TestScheduleQueuesKnownKeywords(t *testing.T) {
	pending := newPendingSet()
	var queued []collector.Job
	enqueue := func(_ context.Context, job collector.Job) error {
		queued = append(queued, job)
		return nil
	}

	schedule(context.Background(), &fakeLister{keywords: []string{"metro", "tram"}}, pending, enqueue, true, discardLogger())

	if len(queued) != 2 {
		t.Fatalf("queued %d jobs, want 2", len(queued))
	}
	if !queued[0].Headless {
		t.Fatal("scheduled jobs should carry the configured headless mode")
	}
	if !pending.Has("metro") || !pending.Has("tram") {
		t.Fatal("scheduled keywords not marked pending")
	}
}

func TestScheduleCoalescesPendingKeywords(t *testing.T) {
	pending := newPendingSet()
	pending.Add("metro")
	var queued []collector.Job
	enqueue := func(_ context.Context, job collector.Job) error {
		queued = append(queued, job)
		return nil
	}

	schedule(context.Background(), &fakeLister{keywords: []string{"metro", "tram"}}, pending, enqueue, true, discardLogger())

	if len(queued) != 1 || queued[0].Keyword != "tram" {
		t.Fatalf("queued %v, want only tram", queued)
	}
}

func TestScheduleReleasesOnEnqueueFailure(t *testing.T) {
	pending := newPendingSet()
	enqueue := func(context.Context, collector.Job) error {
		return errors.New("nats down")
	}

	schedule(context.Background(), &fakeLister{keywords: []string{"metro"}}, pending, enqueue, true, discardLogger())

	if pending.Has("metro") {
		t.Fatal("failed enqueue left the keyword pending forever")
	}
}

func TestScheduleSurvivesListerFailure(t *testing.T) {
	called := false
	enqueue := func(context.Context, collector.Job) error {
		called = true
		return nil
	}

	schedule(context.Background(), &fakeLister{err: errors.New("neo4j down")}, newPendingSet(), enqueue, true, discardLogger())

	if called {
		t.Fatal("enqueue called despite lister failure")
	}
}
