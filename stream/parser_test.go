package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	events []Event
}

func (c *collector) emit(ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) responseText() string {
	var sb strings.Builder
	for _, ev := range c.events {
		if ev.Kind == KindResponse {
			sb.WriteString(ev.Content)
		}
	}
	return sb.String()
}

func (c *collector) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func feedAll(t *testing.T, p *Parser, chunks []string) {
	t.Helper()
	for _, chunk := range chunks {
		require.NoError(t, p.Feed(chunk))
	}
	require.NoError(t, p.Close())
}

func TestParserSingleThinkingSpan(t *testing.T) {
	var c collector
	p := NewParser(c.emit)

	feedAll(t, p, []string{"Hello <think>pondering deeply</think> world"})

	assert.Equal(t, "Hello  world", c.responseText())

	thinking := c.ofKind(KindThinkingContent)
	require.Len(t, thinking, 1)
	assert.Equal(t, "pondering deeply", thinking[0].Content)
	assert.Equal(t, 1, thinking[0].Block)

	require.Len(t, c.ofKind(KindThinkingStart), 1)
	require.Len(t, c.ofKind(KindThinkingEnd), 1)
	assert.Equal(t, 1, p.Blocks())
}

func TestParserMultipleBlocks(t *testing.T) {
	var c collector
	p := NewParser(c.emit)

	feedAll(t, p, []string{"a<think>one</think>b<think>two</think>c"})

	assert.Equal(t, "abc", c.responseText())

	thinking := c.ofKind(KindThinkingContent)
	require.Len(t, thinking, 2)
	assert.Equal(t, "one", thinking[0].Content)
	assert.Equal(t, 1, thinking[0].Block)
	assert.Equal(t, "two", thinking[1].Content)
	assert.Equal(t, 2, thinking[1].Block)
	assert.Equal(t, 2, p.Blocks())
}

// Chunk boundaries must not change what the parser produces: the same input
// split anywhere, including mid-marker, yields the same concatenated response
// text and the same thinking events.
func TestParserChunkBoundaryInvariance(t *testing.T) {
	input := "intro <think>first thought</think> middle <think>second</think> outro"

	var reference collector
	ref := NewParser(reference.emit)
	feedAll(t, ref, []string{input})

	splits := [][]string{
		// mid open marker
		{"intro <th", "ink>first thought</think> middle <think>second</think> outro"},
		// mid close marker
		{"intro <think>first thought</thi", "nk> middle <think>second</think> outro"},
		// marker delivered one byte per chunk
		byteChunks(input),
		// three uneven pieces
		{"intro <think>first ", "thought</think> middle <think>se", "cond</think> outro"},
	}

	for i, chunks := range splits {
		t.Run(fmt.Sprintf("split_%d", i), func(t *testing.T) {
			var c collector
			p := NewParser(c.emit)
			feedAll(t, p, chunks)

			assert.Equal(t, reference.responseText(), c.responseText())
			assert.Equal(t, reference.ofKind(KindThinkingContent), c.ofKind(KindThinkingContent))
			assert.Equal(t, reference.ofKind(KindThinkingStart), c.ofKind(KindThinkingStart))
			assert.Equal(t, reference.ofKind(KindThinkingEnd), c.ofKind(KindThinkingEnd))
		})
	}
}

func byteChunks(s string) []string {
	chunks := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		chunks = append(chunks, s[i:i+1])
	}
	return chunks
}

// An unterminated span never leaks: the buffered thinking is discarded at
// Close and no thinking_end is emitted for it.
func TestParserUnterminatedSpanDropped(t *testing.T) {
	var c collector
	p := NewParser(c.emit)

	feedAll(t, p, []string{"A <think>B"})

	assert.Equal(t, "A ", c.responseText())
	assert.Len(t, c.ofKind(KindThinkingStart), 1)
	assert.Empty(t, c.ofKind(KindThinkingContent))
	assert.Empty(t, c.ofKind(KindThinkingEnd))
}

// A partial marker at end of stream outside a span was never a marker; it is
// ordinary response text.
func TestParserTrailingPartialMarkerFlushedAsResponse(t *testing.T) {
	var c collector
	p := NewParser(c.emit)

	feedAll(t, p, []string{"total is <thr"})

	assert.Equal(t, "total is <thr", c.responseText())
	assert.Zero(t, p.Blocks())
}

func TestParserNoMarkersPassThrough(t *testing.T) {
	var c collector
	p := NewParser(c.emit)

	feedAll(t, p, []string{"plain ", "text ", "only"})

	assert.Equal(t, "plain text only", c.responseText())
	assert.Empty(t, c.ofKind(KindThinkingStart))
}

func TestParserEmitErrorStopsFeed(t *testing.T) {
	p := NewParser(func(Event) error { return fmt.Errorf("sink closed") })

	err := p.Feed("some response text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink closed")
}

func TestPartialSuffix(t *testing.T) {
	cases := []struct {
		s      string
		marker string
		want   int
	}{
		{"abc<", "<think>", 1},
		{"abc<thi", "<think>", 4},
		{"abc", "<think>", 0},
		{"<think", "<think>", 6},
		{"", "<think>", 0},
		{"x</", "</think>", 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, partialSuffix(tc.s, tc.marker), "partialSuffix(%q, %q)", tc.s, tc.marker)
	}
}

func TestStripThinking(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single span", "a <think>x</think> b", "a  b"},
		{"multiline span", "a <think>x\ny</think>b", "a b"},
		{"multiple spans", "<think>x</think>one<think>y</think> two", "one two"},
		{"answer prefix", "<think>x</think>\nAnswer: forty-two", "forty-two"},
		{"no spans", "  plain  ", "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripThinking(tc.in))
		})
	}
}
