package feed

import (
	"container/heap"

	"github.com/akostadinov/chunchun/types"
)

// keyHeap is a min-heap of post keys.
type keyHeap []types.PostKey

func (h keyHeap) Len() int           { return len(h) }
func (h keyHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h keyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *keyHeap) Push(x any) { *h = append(*h, x.(types.PostKey)) }

func (h *keyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// frontier holds the best limit keys seen so far. Its minimum never
// decreases once it is full.
type frontier struct {
	keys  keyHeap
	limit int
}

func newFrontier(limit int) *frontier {
	return &frontier{keys: make(keyHeap, 0, limit), limit: limit}
}

func (f *frontier) len() int   { return len(f.keys) }
func (f *frontier) full() bool { return len(f.keys) >= f.limit }

func (f *frontier) min() types.PostKey { return f.keys[0] }

// offer inserts key if it belongs among the best limit keys and reports
// whether it did.
func (f *frontier) offer(key types.PostKey) bool {
	if !f.full() {
		heap.Push(&f.keys, key)
		return true
	}
	if !f.min().Less(key) {
		return false
	}
	f.keys[0] = key
	heap.Fix(&f.keys, 0)
	return true
}

// newestFirst drains the frontier into a slice ordered newest first.
func (f *frontier) newestFirst() []types.PostKey {
	out := make([]types.PostKey, len(f.keys))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&f.keys).(types.PostKey)
	}
	return out
}
