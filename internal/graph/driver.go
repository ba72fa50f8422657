package graph

import (
	"context"
)

// QueryResult carries what the write path needs back from the store: the
// returned rows plus the write counters the summary reports. Keeping this
// a plain struct (rather than exposing the driver's eager result) lets
// tests fake the store with a few lines.
type QueryResult struct {
	Rows                 []map[string]any
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
}

// Driver is the minimal surface the pipeline needs from a bolt-speaking
// graph store (Neo4j or Memgraph).
type Driver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (QueryResult, error)
	EnsureConstraints(ctx context.Context) error
	Close(ctx context.Context) error
}
