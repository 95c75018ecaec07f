package fits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type ValueKind uint8

const (
	ValueUndefined ValueKind = iota
	ValueLogical
	ValueInteger
	ValueFloat
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueUndefined:
		return "undefined"
	case ValueLogical:
		return "logical"
	case ValueInteger:
		return "integer"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Value is the typed value field of a header card.
// Undefined values keep their raw text in Str, if any.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// AsInt returns the value as an integer. Floats are accepted only when they
// hold an exact integral value.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case ValueInteger:
		return v.Int, true
	case ValueFloat:
		i := int64(v.Float)
		if float64(i) == v.Float {
			return i, true
		}
	}
	return 0, false
}

func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case ValueInteger:
		return float64(v.Int), true
	case ValueFloat:
		return v.Float, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Kind {
	case ValueLogical:
		if v.Bool {
			return "T"
		}
		return "F"
	case ValueInteger:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'G', -1, 64)
	default:
		return v.Str
	}
}

// Card is one parsed 80-byte keyword record.
type Card struct {
	Keyword string
	Value   Value
	Comment string
	// Valued is false for commentary cards (COMMENT, HISTORY, blank keyword
	// and cards without a value indicator).
	Valued bool
}

var errUnterminatedString = errors.New("unterminated string value")

// ParseCard parses a single 80-byte keyword record.
func ParseCard(rec []byte) (Card, error) {
	if len(rec) != CardSize {
		return Card{}, fmt.Errorf("%w: card length %d", ErrMalformedHeader, len(rec))
	}
	kw := strings.TrimRight(string(rec[:KeywordSize]), " ")
	c := Card{Keyword: kw}

	if !hasValueIndicator(rec) || isCommentary(kw) {
		c.Comment = strings.TrimRight(string(rec[KeywordSize:]), " ")
		return c, nil
	}

	v, comment, err := parseValueField(rec[KeywordSize+2:])
	if err != nil {
		return Card{}, fmt.Errorf("%w: keyword %q: %v", ErrMalformedHeader, kw, err)
	}
	c.Value = v
	c.Comment = comment
	c.Valued = true
	return c, nil
}

func hasValueIndicator(rec []byte) bool {
	return rec[KeywordSize] == '=' && rec[KeywordSize+1] == ' '
}

func isCommentary(kw string) bool {
	switch kw {
	case "", "COMMENT", "HISTORY":
		return true
	}
	return false
}

func isEndCard(rec []byte) bool {
	if string(rec[:3]) != "END" {
		return false
	}
	for _, b := range rec[3:] {
		if b != ' ' {
			return false
		}
	}
	return true
}

// parseValueField parses the value/comment part of a card (bytes 10..80).
func parseValueField(b []byte) (Value, string, error) {
	i := 0
	for i < len(b) && b[i] == ' ' {
		i++
	}
	if i == len(b) {
		return Value{}, "", nil
	}

	if b[i] == '\'' {
		s, rest, err := parseQuoted(b[i+1:])
		if err != nil {
			return Value{}, "", err
		}
		return Value{Kind: ValueString, Str: s}, commentOf(rest), nil
	}

	end := len(b)
	if slash := strings.IndexByte(string(b[i:]), '/'); slash >= 0 {
		end = i + slash
	}
	tok := strings.TrimSpace(string(b[i:end]))
	comment := commentOf(b[end:])
	return parseToken(tok), comment, nil
}

// parseQuoted reads a quoted string whose opening quote was already
// consumed. Doubled quotes are an escaped quote. Trailing blanks are not
// significant, leading ones are.
func parseQuoted(b []byte) (string, []byte, error) {
	var sb strings.Builder
	for j := 0; j < len(b); j++ {
		if b[j] != '\'' {
			sb.WriteByte(b[j])
			continue
		}
		if j+1 < len(b) && b[j+1] == '\'' {
			sb.WriteByte('\'')
			j++
			continue
		}
		return strings.TrimRight(sb.String(), " "), b[j+1:], nil
	}
	return "", nil, errUnterminatedString
}

func commentOf(rest []byte) string {
	s := string(rest)
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return ""
	}
	return strings.TrimSpace(s[slash+1:])
}

func parseToken(tok string) Value {
	switch tok {
	case "":
		return Value{}
	case "T":
		return Value{Kind: ValueLogical, Bool: true}
	case "F":
		return Value{Kind: ValueLogical, Bool: false}
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return Value{Kind: ValueInteger, Int: i}
	}
	norm := strings.Map(func(r rune) rune {
		if r == 'D' || r == 'd' {
			return 'E'
		}
		return r
	}, tok)
	if f, err := strconv.ParseFloat(norm, 64); err == nil {
		return Value{Kind: ValueFloat, Float: f}
	}
	// Complex values and other free-format tokens are kept verbatim.
	return Value{Kind: ValueUndefined, Str: tok}
}
