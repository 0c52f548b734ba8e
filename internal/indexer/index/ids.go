package index

import (
	"slices"
	"strconv"
	"strings"
)

// CompareIDs is a total order over document ids: ids that parse as
// integers come first in numeric order, so "2" sorts before "10", and all
// other ids follow in lexical order. Integers that compare equal ("7",
// "007") fall back to lexical order.
func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr != nil:
		return -1
	case aerr != nil && berr == nil:
		return 1
	case aerr == nil && berr == nil && ai != bi:
		if ai < bi {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// SortIDs sorts ids in place with CompareIDs.
func SortIDs(ids []string) {
	slices.SortFunc(ids, CompareIDs)
}
