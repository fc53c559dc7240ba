package selection

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestToggleTwiceIsNoOp verifies toggling the same candidate twice leaves
// any set unchanged.
// Property: Toggle(c); Toggle(c) == identity
func TestToggleTwiceIsNoOp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("double toggle restores membership", prop.ForAll(
		func(existing []string, name string) bool {
			var s Set
			for _, n := range existing {
				if !s.Contains(n) {
					s.Toggle(candidate(n))
				}
			}
			before := s.Names()

			s.Toggle(candidate(name))
			s.Toggle(candidate(name))

			after := s.Names()
			// Membership is what matters; toggling an existing member out
			// and back in moves it to the end.
			slices.Sort(before)
			slices.Sort(after)
			return slices.Equal(before, after)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.Property("names stay unique", prop.ForAll(
		func(names []string) bool {
			var s Set
			for _, n := range names {
				s.Toggle(candidate(n))
			}
			got := s.Names()
			uniq := slices.Clone(got)
			slices.Sort(uniq)
			return len(slices.Compact(uniq)) == len(got)
		},
		gen.SliceOf(gen.IntRange(0, 3).Map(func(i int) string { return string(rune('A' + i)) })),
	))

	properties.TestingRun(t)
}
