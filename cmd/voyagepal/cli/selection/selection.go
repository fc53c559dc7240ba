// Package selection tracks which suggested locations the user picked.
package selection

import (
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

// Set is an insertion-ordered set of candidates, unique by Name.
// The zero value is an empty set ready to use. A Set is not safe for
// concurrent use; the workflow controller serializes access.
//
// Sets hold a few dozen entries at most, so lookups are linear scans.
type Set struct {
	items []trip.LocationCandidate
}

// Toggle removes c if a candidate with the same name is present, otherwise
// adds it. Reports whether c is a member afterwards.
func (s *Set) Toggle(c trip.LocationCandidate) bool {
	if i := s.index(c.Name); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return false
	}
	s.items = append(s.items, c)
	return true
}

// Contains reports whether a candidate named name is selected.
func (s *Set) Contains(name string) bool {
	return s.index(name) >= 0
}

// Len returns the number of selected candidates.
func (s *Set) Len() int { return len(s.items) }

// Items returns a copy of the selection in the order it was made.
func (s *Set) Items() []trip.LocationCandidate {
	out := make([]trip.LocationCandidate, len(s.items))
	copy(out, s.items)
	return out
}

// Names returns the selected candidate names in selection order.
func (s *Set) Names() []string {
	out := make([]string, len(s.items))
	for i, c := range s.items {
		out[i] = c.Name
	}
	return out
}

// Clear empties the set.
func (s *Set) Clear() { s.items = nil }

func (s *Set) index(name string) int {
	for i, c := range s.items {
		if c.Name == name {
			return i
		}
	}
	return -1
}
