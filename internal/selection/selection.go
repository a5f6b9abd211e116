// Package selection tracks which entities on the current directory page are
// marked for a bulk operation. The set is purely in-memory and page-scoped:
// it never survives a reload of the underlying page data.
package selection

import (
	"slices"
	"sync"
)

// Set holds the selected IDs for the currently loaded page. The zero value
// is usable with an empty page. Safe for concurrent use.
type Set[ID comparable] struct {
	mu      sync.Mutex
	page    []ID
	onPage  map[ID]struct{}
	members map[ID]struct{}
}

// New returns an empty selection scoped to an empty page.
func New[ID comparable]() *Set[ID] {
	return &Set[ID]{
		onPage:  map[ID]struct{}{},
		members: map[ID]struct{}{},
	}
}

// Reload replaces the current page and clears the selection. Called whenever
// the page's underlying data changes: filter change, page change, or after a
// bulk operation completes.
func (s *Set[ID]) Reload(pageIDs []ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.page = slices.Clone(pageIDs)
	s.onPage = make(map[ID]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		s.onPage[id] = struct{}{}
	}
	s.members = map[ID]struct{}{}
}

// Toggle flips membership for id. IDs not on the current page are ignored,
// which keeps the set a subset of the page at all times.
func (s *Set[ID]) Toggle(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.onPage[id]; !ok {
		return
	}
	if _, ok := s.members[id]; ok {
		delete(s.members, id)
	} else {
		s.members[id] = struct{}{}
	}
}

// SelectAll sets the selection to exactly the current page's IDs. If the
// page is already fully selected it clears instead, so a second invocation
// acts as deselect-all.
func (s *Set[ID]) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.members) == len(s.page) && len(s.page) > 0 {
		s.members = map[ID]struct{}{}
		return
	}
	s.members = make(map[ID]struct{}, len(s.page))
	for _, id := range s.page {
		s.members[id] = struct{}{}
	}
}

// Clear empties the selection without touching the page scope.
func (s *Set[ID]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = map[ID]struct{}{}
}

// Has reports whether id is selected.
func (s *Set[ID]) Has(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[id]
	return ok
}

// Count returns the number of selected IDs.
func (s *Set[ID]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// IDs returns the selected IDs in page order, ready to hand to a bulk
// operation.
func (s *Set[ID]) IDs() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ID, 0, len(s.members))
	for _, id := range s.page {
		if _, ok := s.members[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
