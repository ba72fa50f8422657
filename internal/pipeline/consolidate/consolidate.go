// Package consolidate resolves each cluster of near-duplicate drafts to a
// single canonical record and reconciles taxonomy identifiers across the
// cluster.
package consolidate

import (
	"sort"

	"github.com/skillatlas/ksagraph/internal/pipeline/model"
	"github.com/skillatlas/ksagraph/internal/pipeline/normalize"
	"github.com/skillatlas/ksagraph/internal/pipeline/similarity"
)

type Options struct {
	Similarity similarity.Options
	// PrimarySource is the high-trust extractor tag preferred when a
	// cluster ties on confidence and taxonomy presence.
	PrimarySource string
	// DefaultConfidence is used when ranking drafts that carry no
	// confidence (normally the gate has already filled it in).
	DefaultConfidence float64
}

// Consolidate clusters the filtered drafts per item type and returns one
// canonical item per cluster. The winner's text is kept verbatim, never
// synthesized, so repeated runs produce identical signatures. An empty
// input is valid and yields an empty (nil) result.
//
// Winner priority: higher confidence, then taxonomy presence, then
// primary-source origin, then longer normalized text. When the winner
// itself lacks a taxonomy id but another member carries one, that id is
// lifted onto the winner so an available alignment is never lost to
// text-preference.
func Consolidate(items []model.DraftItem, opts Options) []model.ConsolidatedItem {
	if len(items) == 0 {
		return nil
	}

	ranked := make([]model.DraftItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[j], ranked[i], opts) // best first
	})

	// Members join clusters in rank order, so each cluster's first element
	// is its best-ranked member.
	clusters := similarity.Cluster(ranked, opts.Similarity)

	var out []model.ConsolidatedItem
	for _, cluster := range clusters {
		winner := cluster[0]
		taxonomyID := winner.TaxonomyID
		if taxonomyID == "" {
			for _, member := range cluster[1:] {
				if member.TaxonomyID != "" {
					taxonomyID = member.TaxonomyID
					break
				}
			}
		}
		out = append(out, model.ConsolidatedItem{
			Text:        winner.Text,
			Type:        winner.Type,
			Confidence:  winner.ConfidenceOr(opts.DefaultConfidence),
			Source:      winner.Source,
			TaxonomyID:  taxonomyID,
			ContentSig:  model.ContentSignature(winner.Type, normalize.Normalize(winner.Text)),
			ClusterSize: len(cluster),
		})
	}
	return out
}

// rankLess reports whether a ranks strictly below b.
func rankLess(a, b model.DraftItem, opts Options) bool {
	ac, bc := a.ConfidenceOr(opts.DefaultConfidence), b.ConfidenceOr(opts.DefaultConfidence)
	if ac != bc {
		return ac < bc
	}
	at, bt := a.TaxonomyID != "", b.TaxonomyID != ""
	if at != bt {
		return bt
	}
	ap, bp := a.Source == opts.PrimarySource, b.Source == opts.PrimarySource
	if ap != bp {
		return bp
	}
	return len(normalize.Normalize(a.Text)) < len(normalize.Normalize(b.Text))
}
