package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// ItemType is the closed set of KSA categories. Items carrying any other
// value are dropped by the quality gate rather than rejected with an error.
type ItemType string

const (
	Knowledge ItemType = "knowledge"
	Skill     ItemType = "skill"
	Ability   ItemType = "ability"
)

func (t ItemType) Valid() bool {
	switch t {
	case Knowledge, Skill, Ability:
		return true
	}
	return false
}

// ItemTypes returns the recognized types in a fixed order, used wherever
// deterministic iteration matters (clustering, report breakdowns).
func ItemTypes() []ItemType {
	return []ItemType{Knowledge, Skill, Ability}
}

// DraftItem is one candidate KSA produced by an upstream extractor or
// enrichment service. Immutable once created; only its consolidated
// successor is ever persisted.
type DraftItem struct {
	Text       string   `json:"text"`
	Type       ItemType `json:"item_type"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source"`
	TaxonomyID string   `json:"taxonomy_id,omitempty"`
}

// ConfidenceOr returns the item's confidence, or def when absent.
func (d DraftItem) ConfidenceOr(def float64) float64 {
	if d.Confidence == nil {
		return def
	}
	return *d.Confidence
}

// ConsolidatedItem is the canonical representative of a cluster of drafts
// judged equivalent. ContentSig is its persistence key: equal signatures
// collapse to one stored entity across runs.
type ConsolidatedItem struct {
	Text       string   `json:"text"`
	Type       ItemType `json:"item_type"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	TaxonomyID string   `json:"taxonomy_id,omitempty"`
	ContentSig string   `json:"content_sig"`
	// ClusterSize records how many drafts collapsed into this item.
	ClusterSize int `json:"cluster_size"`
}

// JobCode identifies one occupational specialty document.
type JobCode struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

const sigVersion = "v1"

// ContentSignature digests (type, normalized text) into a short stable key
// for idempotent MERGEs. Callers pass text already run through
// normalize.Normalize so that surface variants share a signature.
func ContentSignature(t ItemType, normalizedText string) string {
	h := sha256.New()
	h.Write([]byte(sigVersion))
	h.Write([]byte{'|'})
	h.Write([]byte(t))
	h.Write([]byte{'|'})
	h.Write([]byte(normalizedText))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
