package fluxstore

import (
	"fmt"
	"hash/fnv"
)

// Hash returns a structural hash of the leaf and whether it is hashable.
// Test and Map both disable hashability (spec §4.2): a leaf built with a
// transform chain or a user predicate can't be compared for structural
// equality, since the transform/predicate itself isn't comparable.
func (l *leafQuery) Hash() (uint64, bool) {
	if !l.hashable {
		return 0, false
	}
	if l.op == OpTest {
		return 0, false
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "leaf|%d|%d|%s", l.facet, l.op, l.key)
	switch l.facet {
	case FacetMeasurement:
		if l.op == OpMatches {
			fmt.Fprintf(h, "|%s", l.pattern.String())
		} else {
			fmt.Fprintf(h, "|%s", l.rhsStr)
		}
	case FacetTime:
		fmt.Fprintf(h, "|%d", l.rhsTime.UnixNano())
	case FacetTags:
		if l.op == OpMatches {
			fmt.Fprintf(h, "|%s", l.pattern.String())
		} else {
			fmt.Fprintf(h, "|%v|%s", l.rhsIsNull, l.rhsStr)
		}
	case FacetFields:
		fmt.Fprintf(h, "|%v|%g", l.rhsIsNull, l.rhsNum)
	}
	return h.Sum64(), true
}

// Hash returns a structural hash of the compound node. AND and OR are
// commutative: child hashes are combined with XOR so that reordering
// operands (or the flattening that And/Or perform on construction) never
// changes the result. NOT preserves order, though it only ever has one
// child.
func (c *compoundQuery) Hash() (uint64, bool) {
	if !c.hashable {
		return 0, false
	}

	switch c.op {
	case opAnd, opOr:
		var acc uint64
		for _, child := range c.children {
			ch, ok := child.Hash()
			if !ok {
				return 0, false
			}
			acc ^= ch
		}
		h := fnv.New64a()
		fmt.Fprintf(h, "bool|%d|%d", c.op, acc)
		return h.Sum64(), true
	case opNot:
		ch, ok := c.children[0].Hash()
		if !ok {
			return 0, false
		}
		h := fnv.New64a()
		fmt.Fprintf(h, "not|%d", ch)
		return h.Sum64(), true
	default:
		return 0, false
	}
}
