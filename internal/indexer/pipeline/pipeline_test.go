package pipeline

import (
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(config.Default().Indexer.Pipeline)
	require.NoError(t, err)
	return p
}

func TestNewRejectsUnknownStage(t *testing.T) {
	_, err := New(config.PipelineConfig{Stages: []string{"trimmer", "lemmatizer"}})
	assert.ErrorContains(t, err, "lemmatizer")
}

func TestNames(t *testing.T) {
	p := defaultPipeline(t)
	assert.Equal(t, []string{"trimmer", "stopWordFilter", "stemmer"}, p.Names())
	assert.True(t, p.Matches([]string{"trimmer", "stopWordFilter", "stemmer"}))
	assert.False(t, p.Matches([]string{"trimmer", "stemmer"}))
	assert.False(t, p.Matches([]string{"stemmer", "stopWordFilter", "trimmer"}))
}

func TestTrimmer(t *testing.T) {
	tests := map[string][]string{
		"hello":    {"hello"},
		"(hello),": {"hello"},
		"let's":    {"let's"},
		"--":       nil,
		"¿qué?":    {"qué"},
		"v1.2":     {"v1.2"},
	}
	for in, want := range tests {
		assert.Equal(t, want, Trimmer{}.Apply(in), in)
	}
}

func TestStopWordFilterIsExactAndConfigurable(t *testing.T) {
	f := NewStopWordFilter([]string{"the", "and"})
	assert.Nil(t, f.Apply("the"))
	assert.Equal(t, []string{"The"}, f.Apply("The"))
	assert.Equal(t, []string{"there"}, f.Apply("there"))

	empty := NewStopWordFilter(nil)
	assert.Equal(t, []string{"the"}, empty.Apply("the"))
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"connection": "connect",
		"connected":  "connect",
		"making":     "make",
		"storing":    "store",
		"running":    "run",
		"caresses":   "caress",
		"cats":       "cat",
		"world":      "world",
		"2024":       "2024",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestStemIsIdempotent(t *testing.T) {
	words := []string{
		"agreed", "generously", "relational", "conditional", "rational",
		"valenci", "digitizer", "conformabli", "radicalli", "differentli",
		"vileli", "analogousli", "vietnamization", "predication", "operator",
		"feudalism", "decisiveness", "hopefulness", "callousness", "formaliti",
		"sensitiviti", "sensibiliti", "triplicate", "formative", "formalize",
		"electriciti", "electrical", "hopeful", "goodness", "revival",
		"allowance", "inference", "airliner", "gyroscopic", "adjustable",
		"defensible", "irritant", "replacement", "adjustment", "dependent",
		"adoption", "homologou", "communism", "activate", "angulariti",
		"homologous", "effective", "bowdlerize", "probate", "rate", "cease",
		"controll", "roll", "minecraft", "asynchronously", "chunks",
		"dimensions", "biomes", "encoding", "decoder", "handshake",
	}
	for _, w := range words {
		once := Stem(w)
		assert.Equal(t, once, Stem(once), w)
	}
}

func TestProcess(t *testing.T) {
	p := defaultPipeline(t)
	got := slices.Collect(p.Process("Making a Connection, storing the World!"))
	assert.Equal(t, []string{"make", "connect", "store", "world"}, got)
}

func TestProcessEmpty(t *testing.T) {
	p := defaultPipeline(t)
	assert.Empty(t, slices.Collect(p.Process("")))
	assert.Empty(t, slices.Collect(p.Process("the and of -- !!")))
}

func TestProcessTokenSameAsProcess(t *testing.T) {
	p := defaultPipeline(t)
	for _, w := range []string{"Connections", "the", "(worlds)", "Minecraft"} {
		assert.Equal(t, slices.Collect(p.Process(w)), p.ProcessToken(w), w)
	}
}

type splitStage struct{}

func (splitStage) Name() string { return "split" }

func (splitStage) Apply(token string) []string {
	if token == "ab" {
		return []string{"a", "b"}
	}
	return []string{token}
}

func TestRunFanOutAndEarlyStop(t *testing.T) {
	p := &Pipeline{stages: []Stage{splitStage{}, Trimmer{}}}
	tokens := slices.Values([]string{"ab", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, slices.Collect(p.Run(tokens)))

	var first []string
	for tok := range p.Run(tokens) {
		first = append(first, tok)
		break
	}
	assert.Equal(t, []string{"a"}, first)
}

func TestFixedPoint(t *testing.T) {
	shrink := func(s string) string { return s[:len(s)/2+len(s)%2] }
	assert.Equal(t, "a", fixedPoint("abcdefgh", shrink))

	// eight changing passes still reach the fixed point.
	peel := func(s string) string {
		if len(s) > 1 {
			return s[1:]
		}
		return s
	}
	assert.Equal(t, "z", fixedPoint("abcdefghz", peel))

	flip := func(s string) string {
		if s == "ab" {
			return "ba"
		}
		return "ab"
	}
	assert.Equal(t, "ab", fixedPoint("ab", flip))
	assert.Equal(t, fixedPoint("ab", flip), fixedPoint(fixedPoint("ab", flip), flip))

	grow := func(s string) string { return s + "x" }
	got := fixedPoint("w", grow)
	assert.Equal(t, "w", got)
	assert.Equal(t, got, fixedPoint(got, grow))
}
