package stream_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/stream"
)

func TestLineBufferSimple(t *testing.T) {
	b := stream.NewLineBuffer()

	lines := b.Append([]byte("data: hello\ndata: wor"))
	require.Equal(t, []string{"data: hello"}, lines)

	lines = b.Append([]byte("ld\n\n"))
	require.Equal(t, []string{"data: world", ""}, lines)
	assert.Empty(t, b.Pending())
}

func TestLineBufferTrailingPartialRetained(t *testing.T) {
	b := stream.NewLineBuffer()
	lines := b.Append([]byte("partial line, no newline yet"))
	assert.Empty(t, lines)
	assert.Equal(t, "partial line, no newline yet", b.Pending())

	b.Clear()
	assert.Empty(t, b.Pending())
}

// TestLineBufferPartitionInvariant checks spec.md §8: for any partition of
// an input stream into chunks, the emitted lines equal the lines of the
// concatenation, minus a final unterminated line.
func TestLineBufferPartitionInvariant(t *testing.T) {
	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	properties.Property("partition invariance", prop.ForAll(
		func(text string, cutpoints []uint8) bool {
			expected := strings.Split(text, "\n")
			trailingUnterminated := ""
			if !strings.HasSuffix(text, "\n") && len(expected) > 0 {
				trailingUnterminated = expected[len(expected)-1]
				expected = expected[:len(expected)-1]
			}
			for i := range expected {
				expected[i] = strings.TrimSuffix(expected[i], "\r")
			}

			chunks := partitionAt(text, cutpoints)
			b := stream.NewLineBuffer()
			var got []string
			for _, c := range chunks {
				got = append(got, b.Append([]byte(c))...)
			}

			if len(got) != len(expected) {
				return false
			}
			for i := range got {
				if got[i] != expected[i] {
					return false
				}
			}
			return b.Pending() == trailingUnterminated
		},
		gen.RegexMatch(`([a-zA-Z0-9 ]{0,8}\n?){0,6}`),
		gen.SliceOf(gen.UInt8Range(0, 255)),
	))

	properties.TestingRun(t)
}

func partitionAt(s string, cuts []uint8) []string {
	if len(s) == 0 {
		return nil
	}
	points := map[int]bool{}
	for _, c := range cuts {
		p := int(c) % (len(s) + 1)
		points[p] = true
	}
	var sorted []int
	for p := range points {
		sorted = append(sorted, p)
	}
	sorted = append(sorted, 0, len(s))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	var out []string
	last := 0
	for _, p := range sorted {
		if p == last {
			continue
		}
		out = append(out, s[last:p])
		last = p
	}
	return out
}
