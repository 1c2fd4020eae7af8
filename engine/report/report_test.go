package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/graph"
)

type fakeGraphReader struct {
	sentiments map[string]int64
	phases     map[string]int64
	hashtags   []graph.TagCount
	recent     []domain.Post
	post       domain.Post
	keywords   []string
	nodes      map[string]int64
	rels       map[string]int64
	err        error

	recentLimit  int
	hashtagLimit int
}

func (f *fakeGraphReader) SentimentCounts(context.Context, string) (map[string]int64, error) {
	return f.sentiments, f.err
}

func (f *fakeGraphReader) PhaseCounts(context.Context, string) (map[string]int64, error) {
	return f.phases, f.err
}

func (f *fakeGraphReader) TopHashtags(_ context.Context, _ string, limit int) ([]graph.TagCount, error) {
	f.hashtagLimit = limit
	return f.hashtags, f.err
}

func (f *fakeGraphReader) RecentPosts(_ context.Context, _ string, limit int) ([]domain.Post, error) {
	f.recentLimit = limit
	return f.recent, f.err
}

func (f *fakeGraphReader) GetPost(context.Context, string) (domain.Post, error) {
	return f.post, f.err
}

func (f *fakeGraphReader) DistinctKeywords(context.Context) ([]string, error) {
	return f.keywords, f.err
}

func (f *fakeGraphReader) NodeCounts(context.Context) (map[string]int64, error) {
	return f.nodes, f.err
}

func (f *fakeGraphReader) RelationshipCounts(context.Context) (map[string]int64, error) {
	return f.rels, f.err
}

type fakeArchiveReader struct {
	count uint64
	err   error
}

func (f *fakeArchiveReader) CountPoints(context.Context) (uint64, error) {
	return f.count, f.err
}

func testService(gr GraphReader, ar ArchiveReader) *Service {
	s := New(gr, ar, DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestSummaryTotalsSentiments(t *testing.T) {
	gr := &fakeGraphReader{
		sentiments: map[string]int64{"positive": 7, "negative": 2, "neutral": 1},
		phases:     map[string]int64{"during": 10},
		hashtags:   []graph.TagCount{{Tag: "metro", Count: 5}},
	}
	s := testService(gr, nil)

	sum, err := s.Summary(context.Background(), "metro")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 10 {
		t.Fatalf("total %d, want 10", sum.Total)
	}
	if sum.Keyword != "metro" || sum.BySentiment["positive"] != 7 {
		t.Fatalf("summary %+v", sum)
	}
	if len(sum.TopHashtags) != 1 || sum.TopHashtags[0].Tag != "metro" {
		t.Fatalf("hashtags %v", sum.TopHashtags)
	}
	if gr.hashtagLimit != DefaultOptions().HashtagLimit {
		t.Fatalf("hashtag limit %d", gr.hashtagLimit)
	}
	if sum.GeneratedAt.IsZero() {
		t.Fatal("generated_at not set")
	}
}

func TestSummaryGraphError(t *testing.T) {
	gr := &fakeGraphReader{err: errors.New("neo4j down")}
	s := testService(gr, nil)

	if _, err := s.Summary(context.Background(), "metro"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecentLimits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default on zero", 0, DefaultOptions().RecentLimit},
		{"default on negative", -3, DefaultOptions().RecentLimit},
		{"passthrough", 25, 25},
		{"clamped", 10000, maxRecentLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gr := &fakeGraphReader{}
			s := testService(gr, nil)

			if _, err := s.Recent(context.Background(), "metro", tt.limit); err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if gr.recentLimit != tt.want {
				t.Fatalf("limit %d, want %d", gr.recentLimit, tt.want)
			}
		})
	}
}

func TestPost(t *testing.T) {
	want := domain.Post{Platform: "x", Keyword: "metro", Text: "hello"}
	s := testService(&fakeGraphReader{post: want}, nil)

	got, err := s.Post(context.Background(), want.UID())
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got.Text != want.Text {
		t.Fatalf("got %+v", got)
	}
}

func TestSnapshotTotals(t *testing.T) {
	gr := &fakeGraphReader{
		keywords: []string{"metro", "tram"},
		nodes:    map[string]int64{"Post": 40, "Keyword": 2, "Author": 12},
		rels:     map[string]int64{"MATCHED": 40, "POSTED": 35},
	}
	s := testService(gr, &fakeArchiveReader{count: 40})

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TotalNodes != 54 || snap.TotalRelationships != 75 {
		t.Fatalf("totals %d/%d", snap.TotalNodes, snap.TotalRelationships)
	}
	if snap.VectorCount != 40 {
		t.Fatalf("vectors %d", snap.VectorCount)
	}
	if len(snap.Keywords) != 2 {
		t.Fatalf("keywords %v", snap.Keywords)
	}
}

func TestSnapshotSurvivesArchiveFailure(t *testing.T) {
	gr := &fakeGraphReader{
		nodes: map[string]int64{"Post": 1},
		rels:  map[string]int64{},
	}
	s := testService(gr, &fakeArchiveReader{err: errors.New("qdrant down")})

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("archive failure must not fail the snapshot: %v", err)
	}
	if snap.VectorCount != 0 {
		t.Fatalf("vectors %d, want 0", snap.VectorCount)
	}
}

func TestSnapshotWithoutArchive(t *testing.T) {
	gr := &fakeGraphReader{nodes: map[string]int64{}, rels: map[string]int64{}}
	s := testService(gr, nil)

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.VectorCount != 0 {
		t.Fatalf("vectors %d, want 0", snap.VectorCount)
	}
}

func TestSnapshotGraphErrorIsFatal(t *testing.T) {
	s := testService(&fakeGraphReader{err: errors.New("neo4j down")}, &fakeArchiveReader{count: 9})

	if _, err := s.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
