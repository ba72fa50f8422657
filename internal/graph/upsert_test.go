package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
)

// memDriver fakes the store's MERGE semantics in memory: a keyed MERGE
// creates on first sight and matches afterwards, like the real store under
// the uniqueness constraints.
type memDriver struct {
	jobCodes map[string]bool
	docs     map[string]bool
	items    map[string]bool
	taxonomy map[string]bool
	requires map[string]bool // code|sig
	extracts map[string]bool // sig|title
	aligns   map[string]bool // sig|taxonomy

	attempts map[string]int // MergeItemQuery attempts per sig
	failSig  string         // sig whose item MERGE fails
	failures int            // how many times it fails (-1 = always)
}

func newMemDriver() *memDriver {
	return &memDriver{
		jobCodes: map[string]bool{},
		docs:     map[string]bool{},
		items:    map[string]bool{},
		taxonomy: map[string]bool{},
		requires: map[string]bool{},
		extracts: map[string]bool{},
		aligns:   map[string]bool{},
		attempts: map[string]int{},
	}
}

func (d *memDriver) merge(set map[string]bool, key string) QueryResult {
	if set[key] {
		return QueryResult{}
	}
	set[key] = true
	return QueryResult{NodesCreated: 1}
}

func (d *memDriver) mergeRel(set map[string]bool, key string) QueryResult {
	if set[key] {
		return QueryResult{}
	}
	set[key] = true
	return QueryResult{RelationshipsCreated: 1}
}

func (d *memDriver) ExecuteQuery(_ context.Context, query string, params map[string]any) (QueryResult, error) {
	switch query {
	case MergeJobCodeQuery:
		return d.merge(d.jobCodes, params["code"].(string)), nil
	case MergeSourceDocQuery:
		return d.merge(d.docs, params["title"].(string)), nil
	case MergeItemQuery:
		sig := params["content_sig"].(string)
		d.attempts[sig]++
		if sig == d.failSig && (d.failures < 0 || d.attempts[sig] <= d.failures) {
			return QueryResult{}, errors.New("transient store error")
		}
		return d.merge(d.items, sig), nil
	case MergeRequiresQuery:
		return d.mergeRel(d.requires, params["code"].(string)+"|"+params["content_sig"].(string)), nil
	case MergeExtractedFromQuery:
		return d.mergeRel(d.extracts, params["content_sig"].(string)+"|"+params["title"].(string)), nil
	case MergeAlignmentQuery:
		sig := params["content_sig"].(string)
		taxID := params["taxonomy_id"].(string)
		node := d.merge(d.taxonomy, taxID)
		rel := d.mergeRel(d.aligns, sig+"|"+taxID)
		return QueryResult{
			NodesCreated:         node.NodesCreated,
			RelationshipsCreated: rel.RelationshipsCreated,
		}, nil
	}
	return QueryResult{}, errors.New("unexpected query")
}

func (d *memDriver) EnsureConstraints(context.Context) error { return nil }
func (d *memDriver) Close(context.Context) error             { return nil }

func testItems() []model.ConsolidatedItem {
	return []model.ConsolidatedItem{
		{
			Text: "conduct threat analysis", Type: model.Skill,
			Confidence: 0.7, Source: "extractor", TaxonomyID: "T123",
			ContentSig: model.ContentSignature(model.Skill, "conduct threat analysis"),
		},
		{
			Text: "knowledge of intelligence cycle", Type: model.Knowledge,
			Confidence: 0.8, Source: "extractor",
			ContentSig: model.ContentSignature(model.Knowledge, "knowledge of intelligence cycle"),
		},
	}
}

var testJob = model.JobCode{Code: "1N1X1", Title: "Geospatial Intelligence"}

func TestUpsertRunFirstWrite(t *testing.T) {
	d := newMemDriver()
	u := NewUpserter(d, logging.NewNop(), 3)

	stats, err := u.UpsertRun(context.Background(), testJob, testItems(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.Updated)
	// REQUIRES + EXTRACTED_FROM per item, ALIGNS_TO for the tagged one.
	assert.Equal(t, 5, stats.RelationshipsTouched)
	assert.Empty(t, stats.Failed)
}

func TestUpsertRunIdempotent(t *testing.T) {
	d := newMemDriver()
	u := NewUpserter(d, logging.NewNop(), 3)
	ctx := context.Background()

	_, err := u.UpsertRun(ctx, testJob, testItems(), time.Now().UTC())
	require.NoError(t, err)

	stats, err := u.UpsertRun(ctx, testJob, testItems(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 0, stats.RelationshipsTouched)
	assert.Empty(t, stats.Failed)
	assert.Len(t, d.items, 2)
	assert.Len(t, d.requires, 2)
}

func TestUpsertRunSharedItemAcrossJobCodes(t *testing.T) {
	d := newMemDriver()
	u := NewUpserter(d, logging.NewNop(), 3)
	ctx := context.Background()

	_, err := u.UpsertRun(ctx, testJob, testItems(), time.Now().UTC())
	require.NoError(t, err)

	other := model.JobCode{Code: "14N3", Title: "Intelligence Officer"}
	stats, err := u.UpsertRun(ctx, other, testItems(), time.Now().UTC())
	require.NoError(t, err)
	// Same facts, different job code: entities match, new REQUIRES edges.
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 2, stats.Updated)
	assert.Len(t, d.items, 2)
	assert.Len(t, d.requires, 4)
}

func TestUpsertRunFailureIsolation(t *testing.T) {
	d := newMemDriver()
	items := testItems()
	d.failSig = items[0].ContentSig
	d.failures = -1
	u := NewUpserter(d, logging.NewNop(), 2)

	stats, err := u.UpsertRun(context.Background(), testJob, items, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, stats.Failed, 1)
	assert.Equal(t, items[0].ContentSig, stats.Failed[0].ContentSig)
	// The other item still landed.
	assert.Equal(t, 1, stats.Created)
	assert.True(t, d.items[items[1].ContentSig])
	// Bounded attempts, not infinite retries.
	assert.Equal(t, 2, d.attempts[items[0].ContentSig])
}

func TestUpsertRunRetriesTransientFailure(t *testing.T) {
	d := newMemDriver()
	items := testItems()[:1]
	d.failSig = items[0].ContentSig
	d.failures = 2
	u := NewUpserter(d, logging.NewNop(), 3)

	stats, err := u.UpsertRun(context.Background(), testJob, items, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, stats.Failed)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 3, d.attempts[items[0].ContentSig])
}

func TestUpsertRunEmptyBatch(t *testing.T) {
	d := newMemDriver()
	u := NewUpserter(d, logging.NewNop(), 3)

	stats, err := u.UpsertRun(context.Background(), testJob, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, stats.Created)
	assert.Zero(t, stats.Updated)
	assert.True(t, d.jobCodes[testJob.Code])
}
