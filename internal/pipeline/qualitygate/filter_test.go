package qualitygate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skillatlas/ksagraph/internal/pipeline/model"
)

func opts() Options {
	return Options{
		MinLen:                 3,
		MaxLenSkill:            80,
		MaxLenKnowledgeAbility: 150,
		DefaultConfidence:      0.6,
		LowConfidenceThreshold: 0.6,
	}
}

func conf(v float64) *float64 { return &v }

func TestFilterDropsEmptyText(t *testing.T) {
	items := []model.DraftItem{
		{Text: "", Type: model.Skill, Confidence: conf(0.9), Source: "extractor"},
		{Text: "imagery exploitation", Type: model.Skill, Confidence: conf(0.8), Source: "extractor"},
	}
	kept, stats := Filter(items, opts())
	assert.Len(t, kept, 1)
	assert.Equal(t, 1, stats.DroppedStructural)
	assert.Equal(t, 1, stats.Kept)
}

func TestFilterDropsUnknownTypeAndBadConfidence(t *testing.T) {
	items := []model.DraftItem{
		{Text: "operate sensors", Type: model.ItemType("competency"), Confidence: conf(0.5)},
		{Text: "operate sensors", Type: model.Skill, Confidence: conf(1.5)},
		{Text: "operate sensors", Type: model.Skill, Confidence: conf(-0.1)},
	}
	kept, stats := Filter(items, opts())
	assert.Empty(t, kept)
	assert.Equal(t, 3, stats.DroppedStructural)
}

func TestFilterLengthBoundsPerType(t *testing.T) {
	long := "maintain awareness of adversary capabilities across all operational domains and theaters"
	assert.Greater(t, len(long), 80)
	items := []model.DraftItem{
		{Text: long, Type: model.Skill, Confidence: conf(0.9)},
		{Text: long, Type: model.Knowledge, Confidence: conf(0.9)},
		{Text: "db", Type: model.Skill, Confidence: conf(0.9)},
	}
	kept, stats := Filter(items, opts())
	// Knowledge tolerates the longer phrasing, skill does not.
	assert.Len(t, kept, 1)
	assert.Equal(t, model.Knowledge, kept[0].Type)
	assert.Equal(t, 2, stats.DroppedLength)
}

func TestFilterDenyList(t *testing.T) {
	o := opts()
	o.Deny = []string{"Business Intelligence"}
	items := []model.DraftItem{
		{Text: "business intelligence", Type: model.Skill, Confidence: conf(0.9)},
	}
	kept, stats := Filter(items, o)
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.DroppedDenied)
}

func TestFilterCanonicalSubstitution(t *testing.T) {
	o := opts()
	o.Canonical = map[string]string{"imagery analysis": "imagery exploitation"}
	items := []model.DraftItem{
		{Text: "Imagery Analysis", Type: model.Skill, Confidence: conf(0.9)},
		{Text: "imagery exploitation", Type: model.Skill, Confidence: conf(0.8)},
	}
	kept, stats := Filter(items, o)
	// Both collapse to the canonical phrase; exact dedupe keeps the first.
	assert.Len(t, kept, 1)
	assert.Equal(t, "imagery exploitation", kept[0].Text)
	assert.Equal(t, 0.9, *kept[0].Confidence)
	assert.Equal(t, 1, stats.DroppedDuplicate)
}

func TestFilterExactDedupePerType(t *testing.T) {
	items := []model.DraftItem{
		{Text: "Terrain analysis", Type: model.Skill, Confidence: conf(0.7)},
		{Text: "terrain analysis.", Type: model.Skill, Confidence: conf(0.9)},
		{Text: "terrain analysis", Type: model.Knowledge, Confidence: conf(0.9)},
	}
	kept, stats := Filter(items, opts())
	// Same text under a different type is not a duplicate.
	assert.Len(t, kept, 2)
	assert.Equal(t, 1, stats.DroppedDuplicate)
	assert.Equal(t, 0.7, *kept[0].Confidence)
}

func TestFilterStrictSkillRequiresTaxonomy(t *testing.T) {
	o := opts()
	o.StrictSkillFilter = true
	items := []model.DraftItem{
		{Text: "route planning", Type: model.Skill, Confidence: conf(0.4)},
		{Text: "sensor tasking", Type: model.Skill, Confidence: conf(0.4), TaxonomyID: "T9"},
		{Text: "terrain knowledge", Type: model.Knowledge, Confidence: conf(0.4)},
	}
	kept, stats := Filter(items, o)
	assert.Len(t, kept, 2)
	assert.Equal(t, 1, stats.DroppedStrict)
}

func TestFilterStrictSkillOffByDefault(t *testing.T) {
	items := []model.DraftItem{
		{Text: "route planning", Type: model.Skill, Confidence: conf(0.4)},
	}
	kept, _ := Filter(items, opts())
	assert.Len(t, kept, 1)
}

func TestFilterFillsDefaultConfidence(t *testing.T) {
	items := []model.DraftItem{
		{Text: "route planning", Type: model.Skill},
	}
	kept, _ := Filter(items, opts())
	assert.Len(t, kept, 1)
	assert.Equal(t, 0.6, *kept[0].Confidence)
}

func TestFilterEmptyInput(t *testing.T) {
	kept, stats := Filter(nil, opts())
	assert.Empty(t, kept)
	assert.Equal(t, 0, stats.Input)
	assert.Equal(t, 0, stats.Dropped())
}
