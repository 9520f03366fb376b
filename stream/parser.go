package stream

import "strings"

const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

type parserState int

const (
	stateOutside parserState = iota
	stateInside
)

// Parser is a single-pass state machine over an incrementally arriving text
// stream. Outside a thinking span it emits response events; inside, it
// accumulates thinking text and flushes it as one thinking_content /
// thinking_end pair when the span closes. Markers split across chunk
// boundaries are buffered, never matched within a single chunk only.
//
// If the stream ends while still inside a span, the accumulated thinking is
// discarded: incomplete internal reasoning must never leak into the response
// channel.
type Parser struct {
	state    parserState
	pending  string
	thinking strings.Builder
	block    int
	emit     func(Event) error
}

// NewParser returns a parser that forwards classified events to emit.
func NewParser(emit func(Event) error) *Parser {
	return &Parser{emit: emit}
}

// Feed consumes the next chunk of the stream. Chunk boundaries may fall
// anywhere, including mid-marker.
func (p *Parser) Feed(chunk string) error {
	p.pending += chunk

	for {
		switch p.state {
		case stateOutside:
			if i := strings.Index(p.pending, openMarker); i >= 0 {
				if i > 0 {
					if err := p.emit(Event{Kind: KindResponse, Content: p.pending[:i]}); err != nil {
						return err
					}
				}
				p.pending = p.pending[i+len(openMarker):]
				p.state = stateInside
				p.block++
				if err := p.emit(Event{Kind: KindThinkingStart, Block: p.block}); err != nil {
					return err
				}
				continue
			}

			keep := partialSuffix(p.pending, openMarker)
			if flush := p.pending[:len(p.pending)-keep]; flush != "" {
				if err := p.emit(Event{Kind: KindResponse, Content: flush}); err != nil {
					return err
				}
			}
			p.pending = p.pending[len(p.pending)-keep:]
			return nil

		case stateInside:
			if i := strings.Index(p.pending, closeMarker); i >= 0 {
				p.thinking.WriteString(p.pending[:i])
				p.pending = p.pending[i+len(closeMarker):]
				if err := p.emit(Event{Kind: KindThinkingContent, Content: p.thinking.String(), Block: p.block}); err != nil {
					return err
				}
				if err := p.emit(Event{Kind: KindThinkingEnd, Block: p.block}); err != nil {
					return err
				}
				p.thinking.Reset()
				p.state = stateOutside
				continue
			}

			keep := partialSuffix(p.pending, closeMarker)
			p.thinking.WriteString(p.pending[:len(p.pending)-keep])
			p.pending = p.pending[len(p.pending)-keep:]
			return nil
		}
	}
}

// Close flushes any buffered text. A partial marker left outside a span was
// never a marker, so it is surfaced as response text; an unterminated span is
// dropped whole.
func (p *Parser) Close() error {
	if p.state == stateInside {
		p.pending = ""
		p.thinking.Reset()
		return nil
	}

	if p.pending != "" {
		flush := p.pending
		p.pending = ""
		return p.emit(Event{Kind: KindResponse, Content: flush})
	}
	return nil
}

// Blocks reports how many thinking spans were opened so far.
func (p *Parser) Blocks() int {
	return p.block
}

// partialSuffix returns the length of the longest proper prefix of marker
// that s ends with.
func partialSuffix(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, marker[:k]) {
			return k
		}
	}
	return 0
}
