// Package qualitygate prunes noisy or malformed draft items before
// similarity clustering. It is an ordered pipeline of rules over a list:
// structural validity, length bounds, deny-list, canonical-phrase
// substitution, exact de-duplication, and an optional strict-skill gate.
// It never errors; bad items are dropped and tallied.
package qualitygate

import (
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
	"github.com/skillatlas/ksagraph/internal/pipeline/normalize"
)

type Options struct {
	// MinLen is the minimum normalized text length for any item.
	MinLen int
	// MaxLenSkill bounds skill text; skills should stay concise.
	MaxLenSkill int
	// MaxLenKnowledgeAbility bounds knowledge/ability text, which runs
	// naturally longer than skill phrasing.
	MaxLenKnowledgeAbility int
	// DefaultConfidence substitutes for an absent confidence value.
	DefaultConfidence float64
	// Deny lists normalized phrases that never survive the gate.
	Deny []string
	// Canonical maps lexical variants to one preferred surface form,
	// applied to the whole normalized phrase. Distinct from the generic
	// rewrites inside the normalizer.
	Canonical map[string]string
	// StrictSkillFilter, when set, drops skills below
	// LowConfidenceThreshold unless they carry a taxonomy id.
	StrictSkillFilter      bool
	LowConfidenceThreshold float64
}

// Stats tallies what the gate did, broken down by drop reason so callers
// can tell tuning problems from data problems.
type Stats struct {
	Input             int `json:"input"`
	Kept              int `json:"kept"`
	DroppedStructural int `json:"dropped_structural"`
	DroppedLength     int `json:"dropped_length"`
	DroppedDenied     int `json:"dropped_denied"`
	DroppedDuplicate  int `json:"dropped_duplicate"`
	DroppedStrict     int `json:"dropped_strict_skill"`
}

func (s Stats) Dropped() int {
	return s.DroppedStructural + s.DroppedLength + s.DroppedDenied + s.DroppedDuplicate + s.DroppedStrict
}

type sigKey struct {
	t    model.ItemType
	text string
}

// Filter applies the gate rules in order and returns the surviving items
// with their text replaced by the canonical form. The input slice is not
// modified.
func Filter(items []model.DraftItem, opts Options) ([]model.DraftItem, Stats) {
	stats := Stats{Input: len(items)}
	deny := make(map[string]struct{}, len(opts.Deny))
	for _, d := range opts.Deny {
		deny[normalize.Normalize(d)] = struct{}{}
	}

	seen := make(map[sigKey]struct{}, len(items))
	out := make([]model.DraftItem, 0, len(items))

	for _, it := range items {
		text := normalize.Normalize(it.Text)
		if text == "" || !it.Type.Valid() || outOfRange(it.Confidence) {
			stats.DroppedStructural++
			continue
		}

		if len(text) < opts.MinLen || len(text) > maxLen(it.Type, opts) {
			stats.DroppedLength++
			continue
		}

		if _, banned := deny[text]; banned {
			stats.DroppedDenied++
			continue
		}

		if canon, ok := opts.Canonical[text]; ok {
			text = normalize.Normalize(canon)
		}

		key := sigKey{t: it.Type, text: text}
		if _, dup := seen[key]; dup {
			stats.DroppedDuplicate++
			continue
		}

		conf := it.ConfidenceOr(opts.DefaultConfidence)
		if opts.StrictSkillFilter && it.Type == model.Skill &&
			conf < opts.LowConfidenceThreshold && it.TaxonomyID == "" {
			stats.DroppedStrict++
			continue
		}

		seen[key] = struct{}{}
		kept := it
		kept.Text = text
		kept.Confidence = &conf
		out = append(out, kept)
	}

	stats.Kept = len(out)
	return out, stats
}

func maxLen(t model.ItemType, opts Options) int {
	if t == model.Skill {
		return opts.MaxLenSkill
	}
	return opts.MaxLenKnowledgeAbility
}

func outOfRange(c *float64) bool {
	return c != nil && (*c < 0 || *c > 1)
}
