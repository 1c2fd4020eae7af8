package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/repo"
)

// newPostRepo creates a Neo4j-backed repository for Post nodes, keyed
// by uid.
func newPostRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Post, string] {
	return repo.NewNeo4jRepo(
		driver,
		"Post",
		postProps,
		postFromRecord,
		repo.WithIDKey[domain.Post, string]("uid"),
	)
}

func postFromRecord(rec *neo4j.Record) (domain.Post, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Post{}, err
	}
	return postFromProps(node.Props), nil
}
