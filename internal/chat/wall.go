package chat

import "container/heap"

// mergeTimelines performs a k-way merge of timelines that are each already
// ordered by (At, Seq). The result is ordered the same way.
func mergeTimelines(timelines [][]Publication) []Publication {
	total := 0
	h := make(cursorHeap, 0, len(timelines))
	for _, tl := range timelines {
		if len(tl) == 0 {
			continue
		}
		total += len(tl)
		h = append(h, &cursor{pubs: tl})
	}

	out := make([]Publication, 0, total)
	if len(h) == 1 {
		return append(out, h[0].pubs...)
	}

	heap.Init(&h)
	for h.Len() > 0 {
		c := h[0]
		out = append(out, c.head())
		c.pos++
		if c.pos == len(c.pubs) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

type cursor struct {
	pubs []Publication
	pos  int
}

func (c *cursor) head() Publication {
	return c.pubs[c.pos]
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].head().Before(h[j].head()) }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
