// Package dedup marks near-duplicate items using perceptual
// fingerprints.
package dedup

import (
	"github.com/local/scancleaner/internal/fingerprint"
)

// Item is one comparable unit, a report group or a whole document,
// carrying the fingerprints of its pages in order.
type Item struct {
	Index int
	Pages []fingerprint.Fingerprint
}

// Decision is the dedup outcome for one item. DuplicateOf is -1 for
// kept items and always names a kept representative otherwise.
type Decision struct {
	Index           int     `json:"index"`
	IsDuplicate     bool    `json:"is_duplicate"`
	DuplicateOf     int     `json:"duplicate_of"`
	HammingDistance int     `json:"hamming_distance"`
	Similarity      float64 `json:"similarity"`
}

// Policy holds the match thresholds. Both gates must pass for a pair
// to count as duplicates.
type Policy struct {
	HammingThreshold     int
	SimilarityThreshold  float64
	CompareFirstPageOnly bool
}

// Filter walks items in order and greedily compares each against the
// already-kept items, first match wins. Clustering is deliberately
// non-transitive: an item joins the first kept representative it is
// close enough to, and only kept items are ever compared against.
func Filter(items []Item, p Policy) []Decision {
	decisions := make([]Decision, 0, len(items))
	kept := make([]Item, 0, len(items))

	for _, it := range items {
		d := Decision{Index: it.Index, DuplicateOf: -1}
		for _, k := range kept {
			dist, sim, ok := match(k, it, p)
			if !ok {
				continue
			}
			d.IsDuplicate = true
			d.DuplicateOf = k.Index
			d.HammingDistance = dist
			d.Similarity = sim
			break
		}
		if !d.IsDuplicate {
			kept = append(kept, it)
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// match compares two items under the policy. Multi-page items match
// position by position and every pair must pass; the reported distance
// and similarity are the worst pair's. Items with different page
// counts never match unless only first pages are compared.
func match(a, b Item, p Policy) (int, float64, bool) {
	if len(a.Pages) == 0 || len(b.Pages) == 0 {
		return 0, 0, false
	}

	pairs := len(a.Pages)
	if p.CompareFirstPageOnly {
		pairs = 1
	} else if len(a.Pages) != len(b.Pages) {
		return 0, 0, false
	}

	worstDist := 0
	worstSim := 1.0
	for i := 0; i < pairs; i++ {
		dist, err := fingerprint.Distance(a.Pages[i], b.Pages[i])
		if err != nil {
			return 0, 0, false
		}
		sim := fingerprint.Similarity(dist, a.Pages[i].NBits)
		if dist > p.HammingThreshold || sim < p.SimilarityThreshold {
			return 0, 0, false
		}
		if dist > worstDist {
			worstDist = dist
		}
		if sim < worstSim {
			worstSim = sim
		}
	}
	return worstDist, worstSim, true
}
