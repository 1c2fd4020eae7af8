// Package graph maintains the keyword, post, author, and hashtag graph
// in Neo4j and answers the aggregation queries behind the summary API.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/repo"
)

// graphResult is the slice of neo4j.ResultWithContext the store reads.
type graphResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// graphSession narrows neo4j.SessionWithContext so tests can substitute
// a scripted session.
type graphSession interface {
	Run(ctx context.Context, cypher string, params map[string]any) (graphResult, error)
	Close(ctx context.Context) error
}

// sessionOpener produces sessions; the default opener wraps the real
// driver.
type sessionOpener interface {
	OpenSession(ctx context.Context) graphSession
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o driverOpener) OpenSession(ctx context.Context) graphSession {
	return sessionShim{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type sessionShim struct {
	sess neo4j.SessionWithContext
}

func (s sessionShim) Run(ctx context.Context, cypher string, params map[string]any) (graphResult, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s sessionShim) Close(ctx context.Context) error { return s.sess.Close(ctx) }

// GraphStore provides graph operations on top of the generic Neo4j
// repository.
type GraphStore struct {
	opener sessionOpener
	posts  *repo.Neo4jRepo[domain.Post, string]
}

// New creates a GraphStore on a real driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{
		opener: driverOpener{driver: driver},
		posts:  newPostRepo(driver),
	}
}

// mergePostCypher upserts a post together with its keyword, author, and
// hashtag relations in one statement. The conditional FOREACH stands in
// for MERGE-if-present: posts without an author simply get no POSTED
// edge.
const mergePostCypher = `
MERGE (k:Keyword {name: $keyword})
MERGE (p:Post {uid: $uid})
SET p += $props
MERGE (k)-[:MATCHED]->(p)
FOREACH (handle IN CASE WHEN $author = '' THEN [] ELSE [$author] END |
  MERGE (a:Author {handle: handle})
  MERGE (a)-[:POSTED]->(p))
FOREACH (tag IN $hashtags |
  MERGE (h:Hashtag {tag: tag})
  MERGE (p)-[:TAGGED]->(h))`

// MergePost upserts a post and its relations. Re-ingesting the same UID
// updates node properties in place.
func (g *GraphStore) MergePost(ctx context.Context, p domain.Post) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, mergePostCypher, map[string]any{
		"keyword":  p.Keyword,
		"uid":      p.UID(),
		"props":    postProps(p),
		"author":   p.Author,
		"hashtags": strList(p.Hashtags),
	})
	if err != nil {
		return fmt.Errorf("graph: merge post %s: %w", p.UID(), err)
	}
	return nil
}

// PostExists reports whether a post UID is already stored. The worker
// uses it to skip re-enriching posts across process restarts.
func (g *GraphStore) PostExists(ctx context.Context, uid string) (bool, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (p:Post {uid: $uid}) RETURN count(p) > 0 AS exists`,
		map[string]any{"uid": uid})
	if err != nil {
		return false, fmt.Errorf("graph: post exists: %w", err)
	}
	if !res.Next(ctx) {
		return false, nil
	}
	v, _ := res.Record().Get("exists")
	b, _ := v.(bool)
	return b, nil
}

// GetPost returns one stored post by UID.
func (g *GraphStore) GetPost(ctx context.Context, uid string) (domain.Post, error) {
	return g.posts.Get(ctx, uid)
}

// DistinctKeywords lists every keyword that has ever been scraped, in
// name order. The scheduler re-scrapes this set.
func (g *GraphStore) DistinctKeywords(ctx context.Context) ([]string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (k:Keyword) RETURN k.name AS name ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: distinct keywords: %w", err)
	}
	var names []string
	for res.Next(ctx) {
		if v, ok := res.Record().Get("name"); ok {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names, nil
}
