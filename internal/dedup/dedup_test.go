package dedup

import (
	"testing"

	"github.com/local/scancleaner/internal/fingerprint"
)

func fp(idx int, bits uint64) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{PageIndex: idx, Bits: []uint64{bits}, NBits: 16}
}

func item(idx int, pageBits ...uint64) Item {
	it := Item{Index: idx}
	for i, b := range pageBits {
		it.Pages = append(it.Pages, fp(i, b))
	}
	return it
}

var policy = Policy{HammingThreshold: 4, SimilarityThreshold: 0.7}

func TestFilterGreedyNonTransitive(t *testing.T) {
	// d(A,B)=4, d(B,C)=4, d(A,C)=8: B folds into A, C stays even
	// though it is within range of the dropped B.
	items := []Item{
		item(0, 0x0000),
		item(1, 0x000F),
		item(2, 0x00FF),
	}
	got := Filter(items, policy)
	if len(got) != 3 {
		t.Fatalf("got %d decisions, want 3", len(got))
	}
	if got[0].IsDuplicate || got[0].DuplicateOf != -1 {
		t.Errorf("item 0 = %+v, want kept", got[0])
	}
	if !got[1].IsDuplicate || got[1].DuplicateOf != 0 {
		t.Errorf("item 1 = %+v, want duplicate of 0", got[1])
	}
	if got[1].HammingDistance != 4 {
		t.Errorf("item 1 distance = %d, want 4", got[1].HammingDistance)
	}
	if got[1].Similarity != 0.75 {
		t.Errorf("item 1 similarity = %v, want 0.75", got[1].Similarity)
	}
	if got[2].IsDuplicate {
		t.Errorf("item 2 = %+v, want kept (only compared against kept items)", got[2])
	}
}

func TestFilterIdempotent(t *testing.T) {
	items := []Item{
		item(0, 0x0000),
		item(2, 0x00FF),
	}
	got := Filter(items, policy)
	for _, d := range got {
		if d.IsDuplicate {
			t.Errorf("second pass marked %d duplicate", d.Index)
		}
	}
}

func TestFilterBothGatesRequired(t *testing.T) {
	items := []Item{item(0, 0x0000), item(1, 0x000F)}

	// Passes hamming (4 <= 4) but fails similarity (0.75 < 0.8).
	strict := Policy{HammingThreshold: 4, SimilarityThreshold: 0.8}
	if got := Filter(items, strict); got[1].IsDuplicate {
		t.Error("similarity gate did not hold")
	}

	// Passes similarity but fails hamming (4 > 3).
	tight := Policy{HammingThreshold: 3, SimilarityThreshold: 0.7}
	if got := Filter(items, tight); got[1].IsDuplicate {
		t.Error("hamming gate did not hold")
	}
}

func TestFilterPageCountMismatch(t *testing.T) {
	items := []Item{
		item(0, 0x0000, 0x0000),
		item(1, 0x0000),
	}
	got := Filter(items, policy)
	if got[1].IsDuplicate {
		t.Error("items with different page counts matched")
	}

	firstOnly := policy
	firstOnly.CompareFirstPageOnly = true
	got = Filter(items, firstOnly)
	if !got[1].IsDuplicate {
		t.Error("first-page-only comparison did not match identical first pages")
	}
}

func TestFilterMultiPageWorstPair(t *testing.T) {
	// First pages identical, second pages differ by 3 bits: both pairs
	// pass, the reported distance is the worst one.
	items := []Item{
		item(0, 0x0000, 0x0000),
		item(1, 0x0000, 0x0007),
	}
	got := Filter(items, policy)
	if !got[1].IsDuplicate {
		t.Fatal("multi-page items did not match")
	}
	if got[1].HammingDistance != 3 {
		t.Errorf("distance = %d, want worst pair 3", got[1].HammingDistance)
	}
}

func TestFilterMultiPageEveryPairMustPass(t *testing.T) {
	// First pages identical, second pages far apart.
	items := []Item{
		item(0, 0x0000, 0x0000),
		item(1, 0x0000, 0xFFFF),
	}
	got := Filter(items, policy)
	if got[1].IsDuplicate {
		t.Error("matched despite a failing page pair")
	}
}

func TestFilterEmptyAndUncomparable(t *testing.T) {
	if got := Filter(nil, policy); len(got) != 0 {
		t.Errorf("Filter(nil) = %v, want empty", got)
	}

	// An item without fingerprints is kept and never matches.
	items := []Item{item(0, 0x0000), {Index: 1}}
	got := Filter(items, policy)
	if got[1].IsDuplicate {
		t.Error("fingerprint-less item marked duplicate")
	}
}
