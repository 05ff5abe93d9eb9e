// Package dsa holds small data structures used by read projections.
package dsa

import "sort"

// ─── Bounded Top-K (Min-Heap) ───────────────────────────────────────────────
// Keeps the K best items of a stream without sorting the whole input.
//
// Operations:
//   Push:    O(log k), replacing the root and sift down when the item beats the worst kept
//   Sorted:  O(k log k)
//
// The heap root is always the WORST kept item, so a new candidate only has
// to be compared with the root to know whether it belongs in the result.

// TopK collects the k items ranked highest by better. Not safe for
// concurrent use.
type TopK[T any] struct {
	k      int
	better func(a, b T) bool // a ranks strictly before b
	heap   []T
}

// NewTopK creates a collector for at most k items. k <= 0 keeps nothing.
func NewTopK[T any](k int, better func(a, b T) bool) *TopK[T] {
	if k < 0 {
		k = 0
	}
	return &TopK[T]{k: k, better: better, heap: make([]T, 0, k)}
}

// Push offers an item. Returns true if it is currently kept.
func (t *TopK[T]) Push(item T) bool {
	if t.k == 0 {
		return false
	}
	if len(t.heap) < t.k {
		t.heap = append(t.heap, item)
		t.siftUp(len(t.heap) - 1)
		return true
	}
	if !t.better(item, t.heap[0]) {
		return false
	}
	t.heap[0] = item
	t.siftDown(0)
	return true
}

// Len returns the number of kept items.
func (t *TopK[T]) Len() int { return len(t.heap) }

// Sorted returns the kept items best first. The collector is unchanged.
func (t *TopK[T]) Sorted() []T {
	out := make([]T, len(t.heap))
	copy(out, t.heap)
	sort.SliceStable(out, func(i, j int) bool { return t.better(out[i], out[j]) })
	return out
}

// worse returns true if heap[i] should sit above heap[j] (closer to the root).
func (t *TopK[T]) worse(i, j int) bool {
	return t.better(t.heap[j], t.heap[i])
}

// siftUp restores heap property after insertion.
func (t *TopK[T]) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if !t.worse(idx, parent) {
			break
		}
		t.heap[idx], t.heap[parent] = t.heap[parent], t.heap[idx]
		idx = parent
	}
}

// siftDown restores heap property after the root is replaced.
func (t *TopK[T]) siftDown(idx int) {
	n := len(t.heap)
	for {
		worst := idx
		left := 2*idx + 1
		right := 2*idx + 2

		if left < n && t.worse(left, worst) {
			worst = left
		}
		if right < n && t.worse(right, worst) {
			worst = right
		}
		if worst == idx {
			break
		}
		t.heap[idx], t.heap[worst] = t.heap[worst], t.heap[idx]
		idx = worst
	}
}
