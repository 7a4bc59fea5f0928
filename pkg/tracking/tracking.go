// Package tracking matches resources by tracking id.
//
// A resource without a tracking id is never matched. When several
// resources share an id the first in iteration order wins and the
// duplicates are reported, never treated as an error.
package tracking

import (
	"github.com/agentstation/redpush/pkg/resources"
)

// Tracked is implemented by every resource carrying a tracking id.
type Tracked interface {
	Tracking() resources.TrackingID
}

// Find returns the first item carrying id.
func Find[T Tracked](items []T, id resources.TrackingID) (T, bool) {
	var zero T
	if id.IsZero() {
		return zero, false
	}
	for _, item := range items {
		if item.Tracking() == id {
			return item, true
		}
	}
	return zero, false
}

// FindAll returns every item carrying id, in iteration order.
func FindAll[T Tracked](items []T, id resources.TrackingID) []T {
	if id.IsZero() {
		return nil
	}
	var out []T
	for _, item := range items {
		if item.Tracking() == id {
			out = append(out, item)
		}
	}
	return out
}

// Duplicate describes a tracking id carried by more than one item.
type Duplicate struct {
	ID    resources.TrackingID
	Count int
}

// Index is a lookup built once per reconciliation pass.
type Index[T Tracked] struct {
	first     map[resources.TrackingID]T
	counts    map[resources.TrackingID]int
	order     []resources.TrackingID
	untracked int
}

// NewIndex indexes items by tracking id.
func NewIndex[T Tracked](items []T) *Index[T] {
	idx := &Index[T]{
		first:  make(map[resources.TrackingID]T, len(items)),
		counts: make(map[resources.TrackingID]int, len(items)),
	}
	for _, item := range items {
		id := item.Tracking()
		if id.IsZero() {
			idx.untracked++
			continue
		}
		if _, seen := idx.first[id]; !seen {
			idx.first[id] = item
			idx.order = append(idx.order, id)
		}
		idx.counts[id]++
	}
	return idx
}

// Lookup returns the first item indexed under id.
func (idx *Index[T]) Lookup(id resources.TrackingID) (T, bool) {
	item, ok := idx.first[id]
	return item, ok
}

// Has reports whether any item carries id.
func (idx *Index[T]) Has(id resources.TrackingID) bool {
	_, ok := idx.first[id]
	return ok
}

// Len returns the number of distinct tracking ids.
func (idx *Index[T]) Len() int {
	return len(idx.first)
}

// Untracked returns the number of items with no tracking id.
func (idx *Index[T]) Untracked() int {
	return idx.untracked
}

// Duplicates lists ids carried by more than one item, in first-seen order.
func (idx *Index[T]) Duplicates() []Duplicate {
	var out []Duplicate
	for _, id := range idx.order {
		if n := idx.counts[id]; n > 1 {
			out = append(out, Duplicate{ID: id, Count: n})
		}
	}
	return out
}
