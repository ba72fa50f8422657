package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/skillatlas/ksagraph/internal/config"
	"github.com/skillatlas/ksagraph/internal/logging"
)

// BoltDriver talks to Neo4j (or Memgraph) over bolt.
type BoltDriver struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logging.Logger
}

func NewBoltDriver(cfg config.GraphConfig, log *logging.Logger) (*BoltDriver, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
			c.SocketConnectTimeout = timeout
		})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity to %s: %w", cfg.URI, err)
	}

	log.Info("connected to graph store", "uri", cfg.URI)
	return &BoltDriver{driver: driver, database: cfg.Database, log: log}, nil
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (QueryResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("graph: execute query: %w", err)
	}

	out := QueryResult{}
	for _, rec := range result.Records {
		out.Rows = append(out.Rows, rec.AsMap())
	}
	if result.Summary != nil {
		counters := result.Summary.Counters()
		out.NodesCreated = counters.NodesCreated()
		out.RelationshipsCreated = counters.RelationshipsCreated()
		out.PropertiesSet = counters.PropertiesSet()
	}
	return out, nil
}

// EnsureConstraints creates the uniqueness constraints the idempotent
// MERGEs rely on. Safe to call repeatedly; per-statement failures are
// logged and skipped since Memgraph does not accept every Neo4j constraint
// form and the statements are IF NOT EXISTS on Neo4j anyway.
func (d *BoltDriver) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		if _, err := d.ExecuteQuery(ctx, stmt, nil); err != nil {
			d.log.Warn("constraint statement failed", "error", err)
		}
	}
	return nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
