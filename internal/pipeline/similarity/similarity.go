// Package similarity scores and clusters short KSA phrases. The score is a
// fixed-weight blend of token-set Jaccard (order-insensitive) and a
// character-level sequence ratio (order-sensitive), which tolerates
// paraphrase while still penalizing strings that share vocabulary but read
// differently.
package similarity

import (
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
	"github.com/skillatlas/ksagraph/internal/pipeline/normalize"
)

const (
	jaccardWeight  = 0.6
	sequenceWeight = 0.4
)

type Options struct {
	// Threshold is the minimum blended score for two items to share a
	// cluster. Inclusive. High by default: false merges silently drop
	// distinct facts, missed merges only leave near-duplicates.
	Threshold float64
	// MinClusterLen exempts trivially short text from clustering; short
	// strings produce unreliable high scores and always stay singletons.
	MinClusterLen int
}

// Score blends token Jaccard and sequence ratio over the match-normalized
// forms of a and b. Result is in [0, 1].
func Score(a, b string) float64 {
	j := jaccard(normalize.Tokens(a), normalize.Tokens(b))
	r := Ratio(normalize.MatchForm(a), normalize.MatchForm(b))
	return jaccardWeight*j + sequenceWeight*r
}

func jaccard(a, b []string) float64 {
	as := make(map[string]struct{}, len(a))
	for _, t := range a {
		as[t] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, t := range b {
		bs[t] = struct{}{}
	}
	if len(as) == 0 && len(bs) == 0 {
		return 1.0
	}
	if len(as) == 0 || len(bs) == 0 {
		return 0.0
	}
	inter := 0
	for t := range as {
		if _, ok := bs[t]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

// Ratio implements classic sequence-matcher semantics: 2*M/T where M is the
// total matched characters over the best alignment and T the combined
// length of both strings.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	m := matchTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(m) / float64(total)
}

// matchTotal recursively sums matched characters: find the longest common
// block, then match the regions to its left and right independently.
func matchTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	ai, bj, size := longestBlock(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	return size +
		matchTotal(a, b, alo, ai, blo, bj) +
		matchTotal(a, b, ai+size, ahi, bj+size, bhi)
}

func longestBlock(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestSize int) {
	besti, bestj = alo, blo
	// j2len[j] = length of longest common suffix of a[:i+1] and b[:j+1].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] == b[j] {
				k := j2len[j-1] + 1
				next[j] = k
				if k > bestSize {
					besti, bestj, bestSize = i-k+1, j-k+1, k
				}
			}
		}
		j2len = next
	}
	return besti, bestj, bestSize
}

// Cluster partitions items of a single batch into equivalence groups using
// single-link grouping: an item joins the first cluster where it clears the
// threshold against any current member. Types are never compared
// cross-type; callers get knowledge, skill, then ability clusters in input
// order. O(n^2) per type partition, fine for job-code sized batches.
func Cluster(items []model.DraftItem, opts Options) [][]model.DraftItem {
	var out [][]model.DraftItem
	for _, t := range model.ItemTypes() {
		var bucket []model.DraftItem
		for _, it := range items {
			if it.Type == t {
				bucket = append(bucket, it)
			}
		}
		out = append(out, clusterBucket(bucket, opts)...)
	}
	return out
}

func clusterBucket(items []model.DraftItem, opts Options) [][]model.DraftItem {
	var clusters [][]model.DraftItem
	var open []int // indices of clusters still accepting members

	for _, it := range items {
		if len(normalize.Normalize(it.Text)) < opts.MinClusterLen {
			// Pinned singleton: never merged in either direction.
			clusters = append(clusters, []model.DraftItem{it})
			continue
		}
		placed := false
		for _, ci := range open {
			if joins(it, clusters[ci], opts.Threshold) {
				clusters[ci] = append(clusters[ci], it)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []model.DraftItem{it})
			open = append(open, len(clusters)-1)
		}
	}
	return clusters
}

func joins(it model.DraftItem, cluster []model.DraftItem, threshold float64) bool {
	for _, member := range cluster {
		if Score(it.Text, member.Text) >= threshold {
			return true
		}
	}
	return false
}
