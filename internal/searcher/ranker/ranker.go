// Package ranker holds the tf-idf weighting used to score matches and the
// top-k selection that orders scored documents.
package ranker

import (
	"math"
)

// DefaultExactMatchBonus multiplies the weight of a zero-edit match.
const DefaultExactMatchBonus = 1.5

// MatchKind is how a token was reached from a query term.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchFuzzy
)

// TF dampens a raw term count: 1 + ln(count).
func TF(count float64) float64 {
	if count <= 0 {
		return 0
	}
	return 1 + math.Log(count)
}

// IDF is 1 + ln(totalDocs / df), zero when the term is absent.
func IDF(totalDocs, df int) float64 {
	if totalDocs <= 0 || df <= 0 {
		return 0
	}
	return 1 + math.Log(float64(totalDocs)/float64(df))
}

// Weight scores one token occurrence count in one field.
func Weight(count float64, df, totalDocs int, clauseBoost, fieldBoost float64) float64 {
	return TF(count) * IDF(totalDocs, df) * clauseBoost * fieldBoost
}

// MatchFactor scales a weight by how the token was found. A token equal to
// the query term earns exactBonus. A fuzzy match at edit distance d is
// divided by 1+d and a prefix expansion d runes longer than the term by
// 1+ln(1+d).
func MatchFactor(kind MatchKind, distance int, exactBonus float64) float64 {
	if distance <= 0 {
		if exactBonus <= 0 {
			return 1
		}
		return exactBonus
	}
	d := float64(distance)
	switch kind {
	case MatchPrefix:
		return 1 / (1 + math.Log1p(d))
	default:
		return 1 / (1 + d)
	}
}
