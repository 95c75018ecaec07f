package fits

import (
	"fmt"
	"slices"
	"strings"
)

// Header is the immutable, ordered set of cards of one HDU.
type Header struct {
	cards []Card
	index map[string]int
}

// ParseHeader reads header blocks from the start of data until the END card.
// It returns the header and the number of bytes it occupies, which is always
// a multiple of BlockSize.
func ParseHeader(data []byte) (*Header, int, error) {
	h := &Header{index: make(map[string]int)}
	for off := 0; ; off += CardSize {
		if off+CardSize > len(data) {
			return nil, 0, fmt.Errorf("%w: missing END card", ErrMalformedHeader)
		}
		rec := data[off : off+CardSize]
		if isEndCard(rec) {
			n := int(PadToBlock(int64(off + CardSize)))
			if n > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated header block", ErrMalformedHeader)
			}
			return h, n, nil
		}

		if string(rec[:KeywordSize]) == "CONTINUE" && h.appendContinue(rec) {
			continue
		}

		c, err := ParseCard(rec)
		if err != nil {
			return nil, 0, fmt.Errorf("card %d: %w", off/CardSize+1, err)
		}
		h.add(c)
	}
}

// NewHeader builds a header from already parsed cards.
func NewHeader(cards []Card) *Header {
	h := &Header{index: make(map[string]int, len(cards))}
	for _, c := range cards {
		h.add(c)
	}
	return h
}

func (h *Header) add(c Card) {
	if c.Valued {
		if _, dup := h.index[c.Keyword]; !dup {
			h.index[c.Keyword] = len(h.cards)
		}
	}
	h.cards = append(h.cards, c)
}

// appendContinue applies the long-string convention: a string value ending
// in '&' is continued by the string held in the following CONTINUE card.
func (h *Header) appendContinue(rec []byte) bool {
	if len(h.cards) == 0 {
		return false
	}
	last := &h.cards[len(h.cards)-1]
	if !last.Valued || last.Value.Kind != ValueString || !strings.HasSuffix(last.Value.Str, "&") {
		return false
	}
	v, comment, err := parseValueField(rec[KeywordSize:])
	if err != nil || v.Kind != ValueString {
		return false
	}
	last.Value.Str = strings.TrimSuffix(last.Value.Str, "&") + v.Str
	if comment != "" {
		if last.Comment != "" {
			last.Comment += " "
		}
		last.Comment += comment
	}
	return true
}

func (h *Header) Len() int { return len(h.cards) }

// Cards returns a copy of the cards in file order.
func (h *Header) Cards() []Card { return slices.Clone(h.cards) }

// Card returns the first valued card with the given keyword.
func (h *Header) Card(key string) (Card, bool) {
	i, ok := h.index[key]
	if !ok {
		return Card{}, false
	}
	return h.cards[i], true
}

func (h *Header) Has(key string) bool {
	_, ok := h.index[key]
	return ok
}

// Int returns a mandatory integer keyword.
func (h *Header) Int(key string) (int64, error) {
	v, ok, err := h.LookupInt(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: missing keyword %s", ErrMalformedHeader, key)
	}
	return v, nil
}

// LookupInt returns an optional integer keyword. A present keyword with a
// non-integer value is an error.
func (h *Header) LookupInt(key string) (int64, bool, error) {
	c, ok := h.Card(key)
	if !ok || c.Value.Kind == ValueUndefined {
		return 0, false, nil
	}
	v, ok := c.Value.AsInt()
	if !ok {
		return 0, false, fmt.Errorf("%w: keyword %s is %s, want integer", ErrMalformedHeader, key, c.Value.Kind)
	}
	return v, true, nil
}

// LookupFloat returns an optional numeric keyword.
func (h *Header) LookupFloat(key string) (float64, bool, error) {
	c, ok := h.Card(key)
	if !ok || c.Value.Kind == ValueUndefined {
		return 0, false, nil
	}
	v, ok := c.Value.AsFloat()
	if !ok {
		return 0, false, fmt.Errorf("%w: keyword %s is %s, want number", ErrMalformedHeader, key, c.Value.Kind)
	}
	return v, true, nil
}

func (h *Header) LookupString(key string) (string, bool) {
	c, ok := h.Card(key)
	if !ok || c.Value.Kind != ValueString {
		return "", false
	}
	return c.Value.Str, true
}

func (h *Header) Bool(key string) (bool, bool) {
	c, ok := h.Card(key)
	if !ok || c.Value.Kind != ValueLogical {
		return false, false
	}
	return c.Value.Bool, true
}
