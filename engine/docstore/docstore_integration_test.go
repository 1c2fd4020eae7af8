//go:build integration

package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testArchive(t *testing.T, collection string) *PostArchive {
	t.Helper()
	a, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		a.DeleteCollection(context.Background())
		a.Close()
	})
	return a
}

func integrationPost(text string) domain.Post {
	return domain.Post{
		Platform:  "x",
		Keyword:   "metro",
		Text:      text,
		Author:    "@rider",
		PostedAt:  "2024-03-01T10:30:00.000Z",
		ScrapedAt: time.Now().UTC(),
		Sentiment: sentiment.LabelPositive,
		Scores:    sentiment.Scores{Positive: 0.8, Neutral: 0.2, Compound: 0.7},
		Phase:     domain.PhaseDuring,
	}
}

func TestQdrant_EnsureCollectionIdempotent(t *testing.T) {
	a := testArchive(t, "voxpulse_test_ensure")
	ctx := context.Background()

	if err := a.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := a.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection (second call): %v", err)
	}
}

func TestQdrant_UpsertOverwritesSameUID(t *testing.T) {
	a := testArchive(t, "voxpulse_test_upsert")
	ctx := context.Background()

	if err := a.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	p := integrationPost("the new line is great")
	if err := a.UpsertPost(ctx, p); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}

	// Re-ingest with different enrichment: same UID, same point.
	p.Sentiment = sentiment.LabelNeutral
	if err := a.UpsertPost(ctx, p); err != nil {
		t.Fatalf("UpsertPost (overwrite): %v", err)
	}

	n, err := a.CountPoints(ctx)
	if err != nil {
		t.Fatalf("CountPoints: %v", err)
	}
	if n != 1 {
		t.Fatalf("count %d, want 1 after overwrite", n)
	}

	if err := a.UpsertPost(ctx, integrationPost("a different post entirely")); err != nil {
		t.Fatalf("UpsertPost (second post): %v", err)
	}
	if n, _ = a.CountPoints(ctx); n != 2 {
		t.Fatalf("count %d, want 2", n)
	}
}

func TestQdrant_DeletePost(t *testing.T) {
	a := testArchive(t, "voxpulse_test_delete")
	ctx := context.Background()

	if err := a.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	p := integrationPost("short lived post")
	if err := a.UpsertPost(ctx, p); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}
	if err := a.DeletePost(ctx, p.UID()); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	n, err := a.CountPoints(ctx)
	if err != nil {
		t.Fatalf("CountPoints: %v", err)
	}
	if n != 0 {
		t.Fatalf("count %d, want 0 after delete", n)
	}
}
