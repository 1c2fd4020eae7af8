package graph

import (
	"context"
	"fmt"
)

// schemaStatements are the uniqueness constraints the merge queries
// rely on. Each doubles as an index for the lookup side.
var schemaStatements = []string{
	`CREATE CONSTRAINT post_uid IF NOT EXISTS FOR (p:Post) REQUIRE p.uid IS UNIQUE`,
	`CREATE CONSTRAINT keyword_name IF NOT EXISTS FOR (k:Keyword) REQUIRE k.name IS UNIQUE`,
	`CREATE CONSTRAINT author_handle IF NOT EXISTS FOR (a:Author) REQUIRE a.handle IS UNIQUE`,
	`CREATE CONSTRAINT hashtag_tag IF NOT EXISTS FOR (h:Hashtag) REQUIRE h.tag IS UNIQUE`,
}

// EnsureSchema creates the constraints if they don't exist. Safe to run
// on every startup.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: ensure schema: %w", err)
		}
	}
	return nil
}
