package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
)

// WriteFailure identifies one item that could not be persisted after the
// configured retries.
type WriteFailure struct {
	ContentSig string `json:"content_sig"`
	Error      string `json:"error"`
}

// UpsertStats summarizes one batch write. Created/Updated are derived from
// the store's own write counters: a MERGE that created the KSA node counts
// as created, one that matched counts as updated.
type UpsertStats struct {
	Created              int            `json:"created"`
	Updated              int            `json:"updated"`
	RelationshipsTouched int            `json:"relationships_touched"`
	Failed               []WriteFailure `json:"failed,omitempty"`
}

// Upserter performs idempotent create-or-merge writes of consolidated
// items into the graph store. One failing item never rolls back or blocks
// the rest of its batch; its signature is reported instead.
//
// Concurrent upserts for different job codes are safe: all writes are
// keyed MERGEs and the store's merge primitive is atomic per key under the
// uniqueness constraints. Serializing concurrent runs for the same job
// code is the caller's obligation.
type Upserter struct {
	driver      Driver
	log         *logging.Logger
	maxAttempts int
}

func NewUpserter(driver Driver, log *logging.Logger, writeRetries int) *Upserter {
	if writeRetries < 1 {
		writeRetries = 1
	}
	return &Upserter{driver: driver, log: log, maxAttempts: writeRetries}
}

// UpsertRun writes one job code's consolidated items. The run timestamp is
// supplied by the caller so every MERGE in the batch advances last_seen to
// the same instant.
func (u *Upserter) UpsertRun(ctx context.Context, job model.JobCode, items []model.ConsolidatedItem, now time.Time) (UpsertStats, error) {
	stats := UpsertStats{}
	docTitle := sourceDocTitle(job)

	// The parent nodes are shared by every item; if these cannot be
	// written the whole batch is undeliverable.
	if err := u.withRetry(ctx, MergeJobCodeQuery, map[string]any{
		"code":  job.Code,
		"title": job.Title,
		"now":   now,
	}, &stats); err != nil {
		return stats, fmt.Errorf("merge job code %s: %w", job.Code, err)
	}
	if err := u.withRetry(ctx, MergeSourceDocQuery, map[string]any{
		"title": docTitle,
		"now":   now,
	}, &stats); err != nil {
		return stats, fmt.Errorf("merge source doc for %s: %w", job.Code, err)
	}

	for _, it := range items {
		created, err := u.writeItem(ctx, job, it, docTitle, now, &stats)
		if err != nil {
			u.log.Error("item write failed", "job_code", job.Code, "content_sig", it.ContentSig, "error", err)
			stats.Failed = append(stats.Failed, WriteFailure{ContentSig: it.ContentSig, Error: err.Error()})
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	return stats, nil
}

func (u *Upserter) writeItem(ctx context.Context, job model.JobCode, it model.ConsolidatedItem, docTitle string, now time.Time, stats *UpsertStats) (created bool, err error) {
	itemParams := map[string]any{
		"content_sig": it.ContentSig,
		"text":        it.Text,
		"item_type":   string(it.Type),
		"source":      it.Source,
		"confidence":  it.Confidence,
		"now":         now,
	}
	res, err := u.execWithRetry(ctx, MergeItemQuery, itemParams)
	if err != nil {
		return false, fmt.Errorf("merge item: %w", err)
	}
	created = res.NodesCreated > 0
	stats.RelationshipsTouched += res.RelationshipsCreated

	if err := u.withRetry(ctx, MergeRequiresQuery, map[string]any{
		"code":        job.Code,
		"content_sig": it.ContentSig,
		"item_type":   string(it.Type),
		"confidence":  it.Confidence,
		"now":         now,
	}, stats); err != nil {
		return created, fmt.Errorf("merge requires: %w", err)
	}

	if err := u.withRetry(ctx, MergeExtractedFromQuery, map[string]any{
		"content_sig": it.ContentSig,
		"title":       docTitle,
		"evidence":    evidence(it.Text),
		"now":         now,
	}, stats); err != nil {
		return created, fmt.Errorf("merge extracted-from: %w", err)
	}

	if it.TaxonomyID != "" {
		if err := u.withRetry(ctx, MergeAlignmentQuery, map[string]any{
			"taxonomy_id": it.TaxonomyID,
			"content_sig": it.ContentSig,
			"text":        it.Text,
			"confidence":  it.Confidence,
			"now":         now,
		}, stats); err != nil {
			return created, fmt.Errorf("merge alignment: %w", err)
		}
	}
	return created, nil
}

func (u *Upserter) withRetry(ctx context.Context, query string, params map[string]any, stats *UpsertStats) error {
	res, err := u.execWithRetry(ctx, query, params)
	if err != nil {
		return err
	}
	stats.RelationshipsTouched += res.RelationshipsCreated
	return nil
}

func (u *Upserter) execWithRetry(ctx context.Context, query string, params map[string]any) (QueryResult, error) {
	var res QueryResult
	op := func() error {
		var err error
		res, err = u.driver.ExecuteQuery(ctx, query, params)
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(u.maxAttempts-1)), ctx))
	return res, err
}

func sourceDocTitle(job model.JobCode) string {
	return fmt.Sprintf("JOBDOC_%s", job.Code)
}

func evidence(text string) string {
	const max = 100
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
