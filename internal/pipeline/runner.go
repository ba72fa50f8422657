// Package pipeline sequences quality gate, consolidation, and persistence
// for one job code's draft batch. The runner is the failure boundary for a
// unit of work: whatever goes wrong surfaces in the run report, never as a
// program-fatal error that could take down sibling runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillatlas/ksagraph/internal/config"
	"github.com/skillatlas/ksagraph/internal/graph"
	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline/consolidate"
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
	"github.com/skillatlas/ksagraph/internal/pipeline/qualitygate"
	"github.com/skillatlas/ksagraph/internal/pipeline/similarity"
)

// Upserter is the persistence dependency; nil means dry run.
type Upserter interface {
	UpsertRun(ctx context.Context, job model.JobCode, items []model.ConsolidatedItem, now time.Time) (graph.UpsertStats, error)
}

// RunReport is the sole user-visible surface of a run. Filter tallies and
// write failures are reported separately: fewer items because of filtering
// and fewer items because of store trouble have different remediations.
type RunReport struct {
	RunID             string                   `json:"run_id"`
	JobCode           string                   `json:"job_code"`
	JobTitle          string                   `json:"job_title"`
	InputCount        int                      `json:"input_count"`
	FilteredCount     int                      `json:"filtered_count"`
	Filter            qualitygate.Stats        `json:"filter"`
	ConsolidatedCount int                      `json:"consolidated_count"`
	CountsByType      map[model.ItemType]int   `json:"counts_by_type"`
	TaxonomyTagged    int                      `json:"taxonomy_tagged"`
	Items             []model.ConsolidatedItem `json:"items"`
	DryRun            bool                     `json:"dry_run"`
	Write             graph.UpsertStats        `json:"write"`
	DurationMS        int64                    `json:"duration_ms"`
	Error             string                   `json:"error,omitempty"`
}

type Runner struct {
	cfg      *config.Config
	upserter Upserter
	log      *logging.Logger
}

func NewRunner(cfg *config.Config, upserter Upserter, log *logging.Logger) *Runner {
	return &Runner{cfg: cfg, upserter: upserter, log: log}
}

// Run executes gate, consolidation, and persistence for one job code under
// the configured wall-clock budget. Concurrent runs for different job
// codes are fine; at most one in-flight run per job code is a caller
// obligation the runner assumes.
func (r *Runner) Run(ctx context.Context, job model.JobCode, drafts []model.DraftItem) (report RunReport) {
	start := time.Now()
	report = RunReport{
		RunID:        uuid.New().String(),
		JobCode:      job.Code,
		JobTitle:     job.Title,
		InputCount:   len(drafts),
		CountsByType: map[model.ItemType]int{},
		DryRun:       r.upserter == nil,
	}
	defer func() {
		if p := recover(); p != nil {
			report.Error = fmt.Sprintf("pipeline panic: %v", p)
		}
		report.DurationMS = time.Since(start).Milliseconds()
		r.logReport(report)
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Run.BudgetSeconds)*time.Second)
	defer cancel()

	kept, stats := qualitygate.Filter(drafts, r.gateOptions())
	report.Filter = stats
	report.FilteredCount = len(kept)

	items := consolidate.Consolidate(kept, r.consolidateOptions())
	report.ConsolidatedCount = len(items)
	report.Items = items
	for _, it := range items {
		report.CountsByType[it.Type]++
		if it.TaxonomyID != "" {
			report.TaxonomyTagged++
		}
	}

	if r.upserter != nil {
		ws, err := r.upserter.UpsertRun(ctx, job, items, time.Now().UTC())
		report.Write = ws
		if err != nil {
			report.Error = fmt.Sprintf("persist: %v", err)
		}
	}
	return report
}

func (r *Runner) gateOptions() qualitygate.Options {
	q := r.cfg.Quality
	return qualitygate.Options{
		MinLen:                 q.MinLen,
		MaxLenSkill:            q.MaxLenSkill,
		MaxLenKnowledgeAbility: q.MaxLenKnowledgeAbility,
		DefaultConfidence:      q.DefaultConfidence,
		Deny:                   q.Deny,
		Canonical:              q.Canonical,
		StrictSkillFilter:      q.StrictSkillFilter,
		LowConfidenceThreshold: q.LowConfidenceThreshold,
	}
}

func (r *Runner) consolidateOptions() consolidate.Options {
	return consolidate.Options{
		Similarity: similarity.Options{
			Threshold:     r.cfg.Similarity.Threshold,
			MinClusterLen: r.cfg.Similarity.MinClusterLen,
		},
		PrimarySource:     r.cfg.Run.PrimarySource,
		DefaultConfidence: r.cfg.Quality.DefaultConfidence,
	}
}

func (r *Runner) logReport(report RunReport) {
	kv := []interface{}{
		"run_id", report.RunID,
		"job_code", report.JobCode,
		"input", report.InputCount,
		"kept", report.FilteredCount,
		"consolidated", report.ConsolidatedCount,
		"taxonomy_tagged", report.TaxonomyTagged,
		"created", report.Write.Created,
		"updated", report.Write.Updated,
		"write_failures", len(report.Write.Failed),
		"dry_run", report.DryRun,
		"duration_ms", report.DurationMS,
	}
	if report.Error != "" {
		r.log.Error("run failed", append(kv, "error", report.Error)...)
		return
	}
	r.log.Info("run complete", kv...)
}
