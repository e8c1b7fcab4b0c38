// Package schema implements the multi-party signing policies: wildcard name
// patterns, the schema satisfaction rules, minimal signer set selection and
// signer replacement.
package schema

import (
	"strconv"
	"strings"

	"go.dedis.ch/ndnmps/encoding"
	"golang.org/x/xerrors"
)

// Wildcard is the generic component matching any single concrete component
// in a pattern.
const Wildcard = "_"

// WildCardName is a name pattern where any component may be the wildcard.
// Times expresses how many distinct concrete names the pattern must match.
type WildCardName struct {
	Pattern encoding.Name
	Times   int
}

// NewWildCardName returns a pattern over the name with a multiplicity of 1.
func NewWildCardName(pattern encoding.Name) WildCardName {
	return WildCardName{Pattern: pattern, Times: 1}
}

// ParsePattern parses the string form of a pattern. A "<n>x" prefix sets the
// multiplicity, as in "2x/a/_". A multiplicity of zero is rejected.
func ParsePattern(str string) (WildCardName, error) {
	times := 1

	str = strings.TrimSpace(str)
	if idx := strings.IndexByte(str, '/'); idx > 1 && str[idx-1] == 'x' {
		n, err := strconv.Atoi(str[:idx-1])
		if err != nil {
			return WildCardName{}, xerrors.Errorf("invalid multiplicity '%s': %v", str[:idx-1], err)
		}

		times = n
		str = str[idx:]
	}

	if times < 1 {
		return WildCardName{}, xerrors.Errorf("multiplicity must be positive: %d", times)
	}

	name, err := encoding.ParseName(str)
	if err != nil {
		return WildCardName{}, xerrors.Errorf("couldn't parse pattern name: %v", err)
	}

	return WildCardName{Pattern: name, Times: times}, nil
}

// Match returns true when the concrete name has the same number of
// components as the pattern and every non-wildcard position is equal.
func (w WildCardName) Match(name encoding.Name) bool {
	if w.Pattern.Size() != name.Size() {
		return false
	}

	for i := 0; i < w.Pattern.Size(); i++ {
		comp := w.Pattern.Get(i)
		if comp.Type == encoding.TypeGenericComponent && string(comp.Value) == Wildcard {
			continue
		}

		if !comp.Equal(name.Get(i)) {
			return false
		}
	}

	return true
}

// String returns the parseable form of the pattern.
func (w WildCardName) String() string {
	if w.Times > 1 {
		return strconv.Itoa(w.Times) + "x" + w.Pattern.String()
	}

	return w.Pattern.String()
}
