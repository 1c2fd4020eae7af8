package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

// SentimentCounts groups a keyword's posts by sentiment label. Posts
// that never reached classification count under "unscored".
func (g *GraphStore) SentimentCounts(ctx context.Context, keyword string) (map[string]int64, error) {
	return g.countsBy(ctx,
		`MATCH (:Keyword {name: $keyword})-[:MATCHED]->(p:Post)
		 RETURN coalesce(p.sentiment, 'unscored') AS bucket, count(*) AS count`,
		keyword)
}

// PhaseCounts groups a keyword's posts by project phase.
func (g *GraphStore) PhaseCounts(ctx context.Context, keyword string) (map[string]int64, error) {
	return g.countsBy(ctx,
		`MATCH (:Keyword {name: $keyword})-[:MATCHED]->(p:Post)
		 RETURN coalesce(p.phase, 'unknown') AS bucket, count(*) AS count`,
		keyword)
}

func (g *GraphStore) countsBy(ctx context.Context, cypher, keyword string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, map[string]any{"keyword": keyword})
	if err != nil {
		return nil, fmt.Errorf("graph: counts for %s: %w", keyword, err)
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		bucket, _ := rec.Get("bucket")
		cnt, _ := rec.Get("count")
		if b, ok := bucket.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[b] = c
			}
		}
	}
	return counts, nil
}

// TopHashtags returns the most frequent hashtags across a keyword's
// posts.
func (g *GraphStore) TopHashtags(ctx context.Context, keyword string, limit int) ([]TagCount, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Keyword {name: $keyword})-[:MATCHED]->(:Post)-[:TAGGED]->(h:Hashtag)
		RETURN h.tag AS tag, count(*) AS count
		ORDER BY count DESC, tag LIMIT $limit`
	res, err := sess.Run(ctx, cypher, map[string]any{
		"keyword": keyword,
		"limit":   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graph: top hashtags for %s: %w", keyword, err)
	}
	var tags []TagCount
	for res.Next(ctx) {
		rec := res.Record()
		tc := TagCount{}
		if v, ok := rec.Get("tag"); ok {
			if s, ok := v.(string); ok {
				tc.Tag = s
			}
		}
		if v, ok := rec.Get("count"); ok {
			if c, ok := v.(int64); ok {
				tc.Count = c
			}
		}
		tags = append(tags, tc)
	}
	return tags, nil
}

// RecentPosts returns a keyword's newest posts by scrape time.
func (g *GraphStore) RecentPosts(ctx context.Context, keyword string, limit int) ([]domain.Post, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Keyword {name: $keyword})-[:MATCHED]->(p:Post)
		RETURN p ORDER BY p.scraped_at DESC LIMIT $limit`
	res, err := sess.Run(ctx, cypher, map[string]any{
		"keyword": keyword,
		"limit":   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graph: recent posts for %s: %w", keyword, err)
	}
	var posts []domain.Post
	for res.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "p")
		if err != nil {
			return nil, err
		}
		posts = append(posts, postFromProps(node.Props))
	}
	return posts, nil
}
