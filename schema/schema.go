package schema

import (
	"go.dedis.ch/ndnmps/encoding"
)

// MultipartySchema declares which signer identities are required to sign a
// packet, which are optional, and how many optional signers must at least
// participate.
type MultipartySchema struct {
	PktName            WildCardName
	RuleID             string
	Signers            []WildCardName
	OptionalSigners    []WildCardName
	MinOptionalSigners int
}

// Match returns true when the schema governs the given packet name.
func (s MultipartySchema) Match(packetName encoding.Name) bool {
	return s.PktName.Match(packetName)
}

// KeyMatches returns the patterns of the schema that the key name matches.
func (s MultipartySchema) KeyMatches(key encoding.Name) []WildCardName {
	var out []WildCardName

	for _, pattern := range s.Signers {
		if pattern.Match(key) {
			out = append(out, pattern)
		}
	}
	for _, pattern := range s.OptionalSigners {
		if pattern.Match(key) {
			out = append(out, pattern)
		}
	}

	return out
}

// PassSchema returns true when the set of concrete signer names satisfies
// the schema: every required pattern has Times distinct matches, and the
// optional patterns together contribute at least MinOptionalSigners distinct
// names, each pattern capped by its Times.
func (s MultipartySchema) PassSchema(signers []encoding.Name) bool {
	set := dedupNames(signers)

	for _, pattern := range s.Signers {
		count := 0
		for _, name := range set {
			if pattern.Match(name) {
				count++
			}
		}

		if count < pattern.Times {
			return false
		}
	}

	return maxOptionalAssignment(s.OptionalSigners, set) >= s.MinOptionalSigners
}

// MinSigners returns a minimal subset of the available keys that satisfies
// the schema, or false when no such subset exists. Candidates are scanned
// in the order they are provided, so the result is deterministic.
func (s MultipartySchema) MinSigners(available []encoding.Name) ([]encoding.Name, bool) {
	candidates := dedupNames(available)

	var selected []encoding.Name

	// Required patterns first, reusing already selected names whenever the
	// patterns overlap.
	for _, pattern := range s.Signers {
		count := 0
		for _, name := range selected {
			if pattern.Match(name) {
				count++
			}
		}

		for _, name := range candidates {
			if count >= pattern.Times {
				break
			}

			if pattern.Match(name) && !containsName(selected, name) {
				selected = append(selected, name)
				count++
			}
		}

		if count < pattern.Times {
			return nil, false
		}
	}

	// Fill the optional bound, counting the contribution of the names that
	// the required patterns already selected.
	for maxOptionalAssignment(s.OptionalSigners, selected) < s.MinOptionalSigners {
		added := false

		for _, name := range candidates {
			if containsName(selected, name) {
				continue
			}

			current := maxOptionalAssignment(s.OptionalSigners, selected)
			trial := append(append([]encoding.Name{}, selected...), name)
			if maxOptionalAssignment(s.OptionalSigners, trial) > current {
				selected = trial
				added = true
				break
			}
		}

		if !added {
			return nil, false
		}
	}

	return selected, true
}

// maxOptionalAssignment computes the maximum number of distinct names that
// can be assigned to the patterns, with each pattern accepting at most Times
// names. It expands every pattern into Times slots and searches augmenting
// paths over the bipartite graph.
func maxOptionalAssignment(patterns []WildCardName, names []encoding.Name) int {
	type slot struct {
		pattern int
		holder  int // index in names, -1 when free
	}

	var slots []slot
	for p, pattern := range patterns {
		for k := 0; k < pattern.Times; k++ {
			slots = append(slots, slot{pattern: p, holder: -1})
		}
	}

	var try func(name int, visited []bool) bool
	try = func(name int, visited []bool) bool {
		for idx := range slots {
			if visited[idx] || !patterns[slots[idx].pattern].Match(names[name]) {
				continue
			}
			visited[idx] = true

			if slots[idx].holder < 0 || try(slots[idx].holder, visited) {
				slots[idx].holder = name
				return true
			}
		}

		return false
	}

	count := 0
	for i := range names {
		if try(i, make([]bool, len(slots))) {
			count++
		}
	}

	return count
}

func dedupNames(names []encoding.Name) []encoding.Name {
	seen := make(map[string]struct{}, len(names))
	out := make([]encoding.Name, 0, len(names))

	for _, name := range names {
		key := name.String()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, name)
	}

	return out
}

func containsName(names []encoding.Name, name encoding.Name) bool {
	for _, n := range names {
		if n.Equal(name) {
			return true
		}
	}

	return false
}
