package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClauses(t *testing.T) {
	tests := []struct {
		in   string
		want Clause
	}{
		{"world", Clause{Term: "world", Boost: 1}},
		{"+world", Clause{Term: "world", Boost: 1, Presence: Required}},
		{"-minecraft", Clause{Term: "minecraft", Boost: 1, Presence: Forbidden}},
		{"title:world", Clause{Term: "world", Field: "title", Boost: 1}},
		{"world^5", Clause{Term: "world", Boost: 5}},
		{"world^0.5", Clause{Term: "world", Boost: 0.5}},
		{"wrld~", Clause{Term: "wrld", Boost: 1, Fuzziness: 1}},
		{"wrld~2", Clause{Term: "wrld", Boost: 1, Fuzziness: 2}},
		{"wrld~9", Clause{Term: "wrld", Boost: 1, Fuzziness: MaxFuzziness}},
		{"wor*", Clause{Term: "wor", Boost: 1, Prefix: true}},
		{"term~1^3", Clause{Term: "term", Boost: 3, Fuzziness: 1}},
		{"term^3~1", Clause{Term: "term", Boost: 3, Fuzziness: 1}},
		{"+body:conn*^2", Clause{Term: "conn", Field: "body", Boost: 2, Prefix: true, Presence: Required}},
		{"-title:chunk~1", Clause{Term: "chunk", Field: "title", Boost: 1, Fuzziness: 1, Presence: Forbidden}},
		{"protocl~1*", Clause{Term: "protocl", Boost: 1, Fuzziness: 1}},
		{"protocl*~1", Clause{Term: "protocl", Boost: 1, Fuzziness: 1}},
		{"proto~0*", Clause{Term: "proto", Boost: 1, Prefix: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q := Parse(tt.in)
			require.Len(t, q.Clauses, 1)
			assert.Equal(t, tt.want, q.Clauses[0])
		})
	}
}

func TestParseKeepsUnparsableSuffixes(t *testing.T) {
	tests := map[string]string{
		"c++":      "c++",
		"foo^bar":  "foo^bar",
		"foo^":     "foo^",
		"foo^-1":   "foo^-1",
		"foo^NaN":  "foo^NaN",
		"foo~x":    "foo~x",
		"foo~-2":   "foo~-2",
		"a^2^3":    "a^2",
		"http://x": "//x",
		"field:":   "field:",
		":term":    ":term",
		"~":        "~",
		"*":        "*",
		"-":        "-",
	}
	for in, want := range tests {
		q := Parse(in)
		require.Len(t, q.Clauses, 1, in)
		assert.Equal(t, want, q.Clauses[0].Term, in)
	}
}

func TestParseKeywords(t *testing.T) {
	q := Parse("chunk AND biome NOT minecraft")
	assert.Equal(t, ModeAND, q.Mode)
	require.Len(t, q.Clauses, 3)
	assert.Equal(t, Optional, q.Clauses[0].Presence)
	assert.Equal(t, Optional, q.Clauses[1].Presence)
	assert.Equal(t, Forbidden, q.Clauses[2].Presence)
	assert.Equal(t, "minecraft", q.Clauses[2].Term)

	q = Parse("chunk OR biome")
	assert.Equal(t, ModeOR, q.Mode)
	assert.Len(t, q.Clauses, 2)

	q = Parse("and or not")
	assert.Equal(t, ModeDefault, q.Mode)
	assert.Len(t, q.Clauses, 3)

	q = Parse("chunk NOT")
	assert.Len(t, q.Clauses, 1)
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n", "AND OR"} {
		q := Parse(in)
		assert.True(t, q.Empty(), "%q", in)
		assert.Equal(t, in, q.Raw)
	}
}

func TestParseOrderPreserved(t *testing.T) {
	q := Parse("world^5 connection")
	require.Len(t, q.Clauses, 2)
	assert.Equal(t, "world", q.Clauses[0].Term)
	assert.Equal(t, 5.0, q.Clauses[0].Boost)
	assert.Equal(t, "connection", q.Clauses[1].Term)
	assert.Equal(t, 1.0, q.Clauses[1].Boost)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeAND, ParseMode("and"))
	assert.Equal(t, ModeOR, ParseMode("OR"))
	assert.Equal(t, ModeDefault, ParseMode("xor"))
	assert.Equal(t, "AND", ModeAND.String())
	assert.Equal(t, "forbidden", Forbidden.String())
}
