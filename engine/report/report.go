// Package report aggregates stored posts into the views the HTTP API
// serves: per-keyword sentiment summaries, recent-post listings, and
// the store-wide snapshot the export tool polls.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/graph"
)

// GraphReader is the slice of the graph store the service reads.
type GraphReader interface {
	SentimentCounts(ctx context.Context, keyword string) (map[string]int64, error)
	PhaseCounts(ctx context.Context, keyword string) (map[string]int64, error)
	TopHashtags(ctx context.Context, keyword string, limit int) ([]graph.TagCount, error)
	RecentPosts(ctx context.Context, keyword string, limit int) ([]domain.Post, error)
	GetPost(ctx context.Context, uid string) (domain.Post, error)
	DistinctKeywords(ctx context.Context) ([]string, error)
	NodeCounts(ctx context.Context) (map[string]int64, error)
	RelationshipCounts(ctx context.Context) (map[string]int64, error)
}

// ArchiveReader exposes the vector archive's point count.
type ArchiveReader interface {
	CountPoints(ctx context.Context) (uint64, error)
}

// Options bounds the list sizes the service returns.
type Options struct {
	HashtagLimit int
	RecentLimit  int
}

// DefaultOptions returns the default list bounds.
func DefaultOptions() Options {
	return Options{
		HashtagLimit: 10,
		RecentLimit:  50,
	}
}

// maxRecentLimit caps caller-supplied limits on the posts listing.
const maxRecentLimit = 500

// Service answers aggregation queries over the two stores.
type Service struct {
	graph   GraphReader
	archive ArchiveReader
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

// New creates a report service. archive may be nil when no vector store
// is configured; snapshots then report zero vectors.
func New(gr GraphReader, archive ArchiveReader, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.HashtagLimit <= 0 {
		opts.HashtagLimit = DefaultOptions().HashtagLimit
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultOptions().RecentLimit
	}
	return &Service{
		graph:   gr,
		archive: archive,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Summary is the per-keyword aggregation the API serves.
type Summary struct {
	Keyword     string           `json:"keyword"`
	Total       int64            `json:"total"`
	BySentiment map[string]int64 `json:"by_sentiment"`
	ByPhase     map[string]int64 `json:"by_phase"`
	TopHashtags []graph.TagCount `json:"top_hashtags"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Summary aggregates one keyword's posts by sentiment, phase, and
// hashtag.
func (s *Service) Summary(ctx context.Context, keyword string) (Summary, error) {
	bySentiment, err := s.graph.SentimentCounts(ctx, keyword)
	if err != nil {
		return Summary{}, fmt.Errorf("report: summary %s: %w", keyword, err)
	}
	byPhase, err := s.graph.PhaseCounts(ctx, keyword)
	if err != nil {
		return Summary{}, fmt.Errorf("report: summary %s: %w", keyword, err)
	}
	hashtags, err := s.graph.TopHashtags(ctx, keyword, s.opts.HashtagLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("report: summary %s: %w", keyword, err)
	}

	var total int64
	for _, n := range bySentiment {
		total += n
	}

	return Summary{
		Keyword:     keyword,
		Total:       total,
		BySentiment: bySentiment,
		ByPhase:     byPhase,
		TopHashtags: hashtags,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Recent lists a keyword's newest posts. A non-positive limit falls
// back to the configured default; anything above maxRecentLimit is
// clamped.
func (s *Service) Recent(ctx context.Context, keyword string, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = s.opts.RecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	posts, err := s.graph.RecentPosts(ctx, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("report: recent %s: %w", keyword, err)
	}
	return posts, nil
}

// Post returns one stored post by UID.
func (s *Service) Post(ctx context.Context, uid string) (domain.Post, error) {
	p, err := s.graph.GetPost(ctx, uid)
	if err != nil {
		return domain.Post{}, fmt.Errorf("report: post %s: %w", uid, err)
	}
	return p, nil
}

// Snapshot is the store-wide totals view.
type Snapshot struct {
	Timestamp          time.Time        `json:"timestamp"`
	Keywords           []string         `json:"keywords"`
	Nodes              map[string]int64 `json:"nodes"`
	TotalNodes         int64            `json:"total_nodes"`
	Relationships      map[string]int64 `json:"relationships"`
	TotalRelationships int64            `json:"total_relationships"`
	VectorCount        uint64           `json:"vector_count"`
}

// Snapshot gathers node, relationship, and vector totals. A failing
// vector count degrades to zero rather than failing the whole snapshot;
// graph failures are fatal because everything else derives from it.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	keywords, err := s.graph.DistinctKeywords(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("report: snapshot: %w", err)
	}
	nodes, err := s.graph.NodeCounts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("report: snapshot: %w", err)
	}
	rels, err := s.graph.RelationshipCounts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("report: snapshot: %w", err)
	}

	var vectors uint64
	if s.archive != nil {
		vectors, err = s.archive.CountPoints(ctx)
		if err != nil {
			s.log.Warn("report: vector count failed", "error", err)
			vectors = 0
		}
	}

	snap := Snapshot{
		Timestamp:     s.now().UTC(),
		Keywords:      keywords,
		Nodes:         nodes,
		Relationships: rels,
		VectorCount:   vectors,
	}
	for _, n := range nodes {
		snap.TotalNodes += n
	}
	for _, n := range rels {
		snap.TotalRelationships += n
	}
	return snap, nil
}
