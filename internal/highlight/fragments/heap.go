package fragments

import (
	"container/heap"
	"slices"
)

// topN keeps the n best windows by score. Ties go to the earlier window.
func topN(windows []window, n int) []window {
	if n <= 0 || len(windows) <= n {
		out := append([]window(nil), windows...)
		sortByScore(out)
		return out
	}
	h := &windowHeap{}
	heap.Init(h)
	for _, w := range windows {
		heap.Push(h, w)
		if h.Len() > n {
			heap.Pop(h)
		}
	}
	result := make([]window, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(window)
	}
	return result
}

func sortByScore(ws []window) {
	slices.SortStableFunc(ws, func(a, b window) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return a.start - b.start
	})
}

// windowHeap is a min-heap: the root is the worst window.
type windowHeap []window

func (h windowHeap) Len() int { return len(h) }

func (h windowHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].start > h[j].start
}

func (h windowHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *windowHeap) Push(x any) {
	*h = append(*h, x.(window))
}

func (h *windowHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
