package benchmark

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Chunks are sent to the client as a sequence of sections. Each section
        holds a palette and a packed array of block states. Light data follows
        in separate arrays, and block entities are listed last so the client can
        place signs, chests and banners once the geometry has been decoded.`,
	"long": strings.Repeat(`The protocol starts with a handshake that selects the next state.
        During login the server may enable compression and encryption; every later
        packet is then length-prefixed, optionally compressed with zlib, and finally
        encrypted. Configuration exchanges registries and feature flags before play
        begins, at which point the world, entities and inventories are streamed. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	tok := tokenizer.New("-")
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Collect(text)
			}
		})
	}
}

func BenchmarkPipeline(b *testing.B) {
	p := defaultPipeline(b)
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = slices.Collect(p.Process(text))
			}
		})
	}
}

func BenchmarkPipelineParallel(b *testing.B) {
	p := defaultPipeline(b)
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for range p.Process(text) {
			}
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"running", "connection", "handshake", "encrypted",
		"compression", "registries", "inventories", "decoded",
		"configuration", "streamed",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = pipeline.Stem(w)
		}
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	tok := tokenizer.New("-")
	base := "chunk section palette light block entity "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Collect(text)
			}
		})
	}
}
