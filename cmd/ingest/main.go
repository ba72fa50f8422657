// Command ingest consolidates draft KSA batches from JSON files into the
// graph store, one run per job code. Files carry the same shape as the
// server's /runs request; duplicate job codes across files are skipped so
// no two runs for the same code ever race.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/skillatlas/ksagraph/internal/config"
	"github.com/skillatlas/ksagraph/internal/graph"
	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline"
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
)

type draftFile struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Items []struct {
		Text       string   `json:"text"`
		Type       string   `json:"type"`
		Confidence *float64 `json:"confidence"`
		Source     string   `json:"source"`
		TaxonomyID string   `json:"taxonomy_id"`
	} `json:"items"`
}

type batch struct {
	job    model.JobCode
	drafts []model.DraftItem
}

func main() {
	cfgPath := flag.String("config", "config/config.toml", "path to the TOML configuration file")
	dryRun := flag.Bool("dry-run", false, "consolidate and report without writing to the store")
	concurrency := flag.Int("concurrency", 4, "maximum job codes processed in parallel")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] draft-file.json...")
		os.Exit(2)
	}

	_ = godotenv.Load()

	log, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("load configuration", "path", *cfgPath, "error", err)
	}

	batches, err := loadBatches(flag.Args(), log)
	if err != nil {
		log.Fatal("load draft files", "error", err)
	}

	var upserter pipeline.Upserter
	if !*dryRun {
		driver, err := graph.NewBoltDriver(cfg.Graph, log)
		if err != nil {
			log.Fatal("connect to graph store", "error", err)
		}
		defer driver.Close(context.Background())
		if err := driver.EnsureConstraints(context.Background()); err != nil {
			log.Warn("ensure constraints", "error", err)
		}
		upserter = graph.NewUpserter(driver, log, cfg.Run.WriteRetries)
	}
	runner := pipeline.NewRunner(cfg, upserter, log)

	if failures := runAll(context.Background(), runner, batches, *concurrency); failures > 0 {
		log.Error("ingest finished with failures", "failed_runs", failures, "total_runs", len(batches))
		os.Exit(1)
	}
	log.Info("ingest complete", "runs", len(batches))
}

// loadBatches parses every file and keeps the first batch per job code.
func loadBatches(paths []string, log *logging.Logger) ([]batch, error) {
	seen := map[string]string{}
	var out []batch
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var f draftFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if f.Code == "" {
			return nil, fmt.Errorf("%s: missing job code", path)
		}
		if prev, dup := seen[f.Code]; dup {
			log.Warn("duplicate job code skipped", "code", f.Code, "file", path, "kept_file", prev)
			continue
		}
		seen[f.Code] = path

		drafts := make([]model.DraftItem, 0, len(f.Items))
		for i, it := range f.Items {
			t := model.ItemType(it.Type)
			if !t.Valid() {
				return nil, fmt.Errorf("%s: item %d: invalid type %q", path, i, it.Type)
			}
			drafts = append(drafts, model.DraftItem{
				Text:       it.Text,
				Type:       t,
				Confidence: it.Confidence,
				Source:     it.Source,
				TaxonomyID: it.TaxonomyID,
			})
		}
		out = append(out, batch{job: model.JobCode{Code: f.Code, Title: f.Title}, drafts: drafts})
	}
	return out, nil
}

// runAll fans the batches out over the runner and prints each report to
// stdout as a JSON line. A failed run never stops its siblings.
func runAll(ctx context.Context, runner *pipeline.Runner, batches []batch, concurrency int) int {
	var (
		g, gctx  = errgroup.WithContext(ctx)
		mu       sync.Mutex
		failures int
	)
	g.SetLimit(concurrency)
	enc := json.NewEncoder(os.Stdout)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			report := runner.Run(gctx, b.job, b.drafts)
			mu.Lock()
			defer mu.Unlock()
			_ = enc.Encode(report)
			if report.Error != "" {
				failures++
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}
