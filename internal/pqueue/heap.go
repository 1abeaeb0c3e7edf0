// Package pqueue provides an indexed binary min-heap for best-first searches.
package pqueue

type entry[K comparable] struct {
	key  K
	prio float64
}

// Heap is an array-backed binary min-heap keyed by priority. Each key appears
// at most once; a key→slot index makes DecreasePriority O(log n).
// Not safe for concurrent use.
type Heap[K comparable] struct {
	items []entry[K]
	slot  map[K]int
}

// New returns an empty heap sized for about hint entries.
func New[K comparable](hint int) *Heap[K] {
	return &Heap[K]{
		items: make([]entry[K], 0, hint),
		slot:  make(map[K]int, hint),
	}
}

// Len returns the number of queued keys.
func (h *Heap[K]) Len() int {
	return len(h.items)
}

// Contains reports whether key is queued.
func (h *Heap[K]) Contains(key K) bool {
	_, ok := h.slot[key]
	return ok
}

// Priority returns the queued priority of key.
func (h *Heap[K]) Priority(key K) (float64, bool) {
	i, ok := h.slot[key]
	if !ok {
		return 0, false
	}
	return h.items[i].prio, true
}

// Push inserts key with prio. If key is already queued its priority is
// replaced and the entry moved up or down as needed.
func (h *Heap[K]) Push(key K, prio float64) {
	if i, ok := h.slot[key]; ok {
		old := h.items[i].prio
		h.items[i].prio = prio
		if prio < old {
			h.up(i)
		} else {
			h.down(i)
		}
		return
	}
	h.items = append(h.items, entry[K]{key: key, prio: prio})
	i := len(h.items) - 1
	h.slot[key] = i
	h.up(i)
}

// DecreasePriority lowers the priority of a queued key. It returns false, and
// leaves the heap untouched, when key is absent or prio is not lower.
func (h *Heap[K]) DecreasePriority(key K, prio float64) bool {
	i, ok := h.slot[key]
	if !ok || prio >= h.items[i].prio {
		return false
	}
	h.items[i].prio = prio
	h.up(i)
	return true
}

// Peek returns the minimum entry without removing it.
func (h *Heap[K]) Peek() (K, float64, bool) {
	if len(h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	return h.items[0].key, h.items[0].prio, true
}

// PopMin removes and returns the entry with the lowest priority.
func (h *Heap[K]) PopMin() (K, float64, bool) {
	n := len(h.items)
	if n == 0 {
		var zero K
		return zero, 0, false
	}
	top := h.items[0]
	h.swap(0, n-1)
	h.items = h.items[:n-1]
	delete(h.slot, top.key)
	if len(h.items) > 0 {
		h.down(0)
	}
	return top.key, top.prio, true
}

// Reset empties the heap, keeping allocated storage.
func (h *Heap[K]) Reset() {
	h.items = h.items[:0]
	clear(h.slot)
}

func (h *Heap[K]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[parent].prio <= h.items[i].prio {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *Heap[K]) down(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := left + 1
		if left < n && h.items[left].prio < h.items[smallest].prio {
			smallest = left
		}
		if right < n && h.items[right].prio < h.items[smallest].prio {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *Heap[K]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.slot[h.items[i].key] = i
	h.slot[h.items[j].key] = j
}
