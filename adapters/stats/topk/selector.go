// Package topk reduces a timestep's pair scores to the K strongest pairs.
package topk

import (
	"container/heap"
	"sort"

	"gocorr/domain/correlation"
)

// Better reports whether a ranks ahead of b: larger value first, and on equal
// values the lower packed index first. It is a strict total order on valid
// scores with distinct indices.
func Better(a, b correlation.PairScore) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.Index < b.Index
}

// scoreHeap is a min-heap on Better: the root is the weakest kept score
type scoreHeap []correlation.PairScore

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return Better(h[j], h[i]) }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(correlation.PairScore)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Selection is the ranked outcome of one timestep
type Selection struct {
	Top        []correlation.TopEntry
	Kept       []correlation.PairScore // Top in score form, same order
	Evaluated  int
	Degenerate int
}

// Selector keeps K scores in a bounded heap. One selector can be reused across
// timesteps but is not safe for concurrent use.
type Selector struct {
	k    int
	heap scoreHeap
}

func NewSelector(k int) *Selector {
	if k < 0 {
		k = 0
	}
	return &Selector{k: k, heap: make(scoreHeap, 0, k)}
}

// K returns the configured result size
func (s *Selector) K() int { return s.k }

// Select ranks the valid scores across all given candidate sets, which must
// not share pairs. The result equals sorting every valid score by descending
// value, then ascending packed index, and keeping the first K. Fewer than K
// valid scores yield a shorter result; degenerate pairs are never ranked.
func (s *Selector) Select(sets ...[]correlation.PairScore) Selection {
	s.heap = s.heap[:0]
	var sel Selection

	for _, scores := range sets {
		for _, sc := range scores {
			sel.Evaluated++
			if sc.Status != correlation.StatusValid {
				sel.Degenerate++
				continue
			}
			if s.k == 0 {
				continue
			}
			if len(s.heap) < s.k {
				heap.Push(&s.heap, sc)
				continue
			}
			if Better(sc, s.heap[0]) {
				s.heap[0] = sc
				heap.Fix(&s.heap, 0)
			}
		}
	}

	kept := make([]correlation.PairScore, len(s.heap))
	copy(kept, s.heap)
	sort.Slice(kept, func(i, j int) bool { return Better(kept[i], kept[j]) })

	sel.Kept = kept
	sel.Top = make([]correlation.TopEntry, len(kept))
	for i, sc := range kept {
		sel.Top[i] = correlation.TopEntry{
			Value: sc.Value,
			A:     int(sc.A),
			B:     int(sc.B),
			Index: sc.Index,
		}
	}
	return sel
}

// Merge re-ranks candidate lists that were each already reduced, as returned
// by a kernel that emits several partial top lists per timestep.
func Merge(k int, candidates ...[]correlation.PairScore) Selection {
	return NewSelector(k).Select(candidates...)
}
