package content

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var ErrSyntax = errors.New("content stream syntax error")

// SyntaxError locates a tokenizer failure. It wraps ErrSyntax.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at byte %d: %s", ErrSyntax, e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type OperandKind int

const (
	Number OperandKind = iota
	Name
	String
	Array
	Dict
	Bool
	Null
)

// Operand is one PDF object preceding an operator. Dict items alternate
// key (Name) and value.
type Operand struct {
	Kind  OperandKind
	Num   float64
	Str   string
	Items []Operand
}

// Span is a half-open byte range of the source stream.
type Span struct {
	Start, End int
}

func (s Span) Valid() bool { return s.End > s.Start }

// Operation is an operator with its operands. Span covers the operands and
// the operator; for inline images it runs from BI through EI. Raw aliases
// the source bytes of Span.
type Operation struct {
	Operator string
	Operands []Operand
	Span     Span
	Raw      []byte
}

// Parse splits a decoded content stream into operations.
func Parse(data []byte) ([]Operation, error) {
	p := &parser{data: data}
	return p.parse()
}

type parser struct {
	data    []byte
	pos     int
	ops     []Operation
	operand []Operand
	opStart int
}

func (p *parser) parse() ([]Operation, error) {
	p.opStart = -1
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			break
		}
		if p.opStart < 0 {
			p.opStart = p.pos
		}
		c := p.data[p.pos]
		if isRegular(c) && !isNumberStart(c) {
			if err := p.parseKeyword(); err != nil {
				return nil, err
			}
			continue
		}
		op, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		p.operand = append(p.operand, op)
	}
	if len(p.operand) > 0 {
		return nil, &SyntaxError{Pos: p.pos, Msg: "trailing operands without operator"}
	}
	return p.ops, nil
}

func (p *parser) parseKeyword() error {
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	word := string(p.data[start:p.pos])
	switch word {
	case "true", "false":
		p.operand = append(p.operand, Operand{Kind: Bool, Str: word})
		return nil
	case "null":
		p.operand = append(p.operand, Operand{Kind: Null})
		return nil
	case "BI":
		return p.parseInlineImage()
	case "ID", "EI":
		return &SyntaxError{Pos: start, Msg: word + " outside inline image"}
	}
	p.emit(word)
	return nil
}

func (p *parser) emit(operator string) {
	op := Operation{
		Operator: operator,
		Operands: p.operand,
		Span:     Span{Start: p.opStart, End: p.pos},
		Raw:      p.data[p.opStart:p.pos],
	}
	p.ops = append(p.ops, op)
	p.operand = nil
	p.opStart = -1
}

// parseInlineImage reads the key/value pairs after BI, then skips the
// image data up to the EI that ends it.
func (p *parser) parseInlineImage() error {
	if len(p.operand) > 0 {
		return &SyntaxError{Pos: p.pos, Msg: "operands before BI"}
	}
	var dict []Operand
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return &SyntaxError{Pos: p.pos, Msg: "unterminated inline image dictionary"}
		}
		if bytes.HasPrefix(p.data[p.pos:], []byte("ID")) && (p.pos+2 >= len(p.data) || isWhitespace(p.data[p.pos+2])) {
			p.pos += 2
			break
		}
		v, err := p.parseOperand()
		if err != nil {
			return err
		}
		dict = append(dict, v)
	}
	if p.pos < len(p.data) {
		p.pos++ // single whitespace after ID
	}
	for i := p.pos; i+1 < len(p.data); i++ {
		if p.data[i] != 'E' || p.data[i+1] != 'I' {
			continue
		}
		if i > 0 && !isWhitespace(p.data[i-1]) {
			continue
		}
		if i+2 < len(p.data) && !isDelimiter(p.data[i+2]) {
			continue
		}
		p.pos = i + 2
		p.operand = []Operand{{Kind: Dict, Items: dict}}
		p.emit("BI")
		return nil
	}
	return &SyntaxError{Pos: p.pos, Msg: "unterminated inline image data"}
}

func (p *parser) parseOperand() (Operand, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return Operand{}, &SyntaxError{Pos: p.pos, Msg: "unexpected end of stream"}
	}
	c := p.data[p.pos]
	switch {
	case isNumberStart(c):
		return p.parseNumber()
	case c == '(':
		return p.parseString()
	case c == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		return p.parseDict()
	case c == '<':
		return p.parseHexString()
	case c == '/':
		return p.parseName(), nil
	case c == '[':
		return p.parseArray()
	case isRegular(c):
		start := p.pos
		for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
			p.pos++
		}
		switch w := string(p.data[start:p.pos]); w {
		case "true", "false":
			return Operand{Kind: Bool, Str: w}, nil
		case "null":
			return Operand{Kind: Null}, nil
		default:
			return Operand{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected keyword %q in operand", w)}
		}
	}
	return Operand{}, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (p *parser) parseNumber() (Operand, error) {
	start := p.pos
	if p.data[p.pos] == '+' || p.data[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	s := string(p.data[start:p.pos])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// PDF producers emit forms such as "-.5" and "4." which ParseFloat
		// accepts; anything else ("--3", "1.2.3") is malformed.
		return Operand{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", s)}
	}
	return Operand{Kind: Number, Num: v}, nil
}

func (p *parser) parseName() Operand {
	p.pos++ // '/'
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	return Operand{Kind: Name, Str: decodeName(p.data[start:p.pos])}
}

func decodeName(b []byte) string {
	if bytes.IndexByte(b, '#') < 0 {
		return string(b)
	}
	var out bytes.Buffer
	for i := 0; i < len(b); i++ {
		if b[i] == '#' && i+2 < len(b) {
			if v, err := strconv.ParseUint(string(b[i+1:i+3]), 16, 8); err == nil {
				out.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		out.WriteByte(b[i])
	}
	return out.String()
}

func (p *parser) parseString() (Operand, error) {
	start := p.pos
	p.pos++ // '('
	var out bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch c {
		case '\\':
			p.pos++
			if p.pos >= len(p.data) {
				return Operand{}, &SyntaxError{Pos: start, Msg: "unclosed string"}
			}
			p.parseEscape(&out)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				p.pos++
				return Operand{Kind: String, Str: out.String()}, nil
			}
		}
		out.WriteByte(c)
		p.pos++
	}
	return Operand{}, &SyntaxError{Pos: start, Msg: "unclosed string"}
}

func (p *parser) parseEscape(out *bytes.Buffer) {
	c := p.data[p.pos]
	switch c {
	case 'n':
		out.WriteByte('\n')
	case 'r':
		out.WriteByte('\r')
	case 't':
		out.WriteByte('\t')
	case 'b':
		out.WriteByte('\b')
	case 'f':
		out.WriteByte('\f')
	case '\r':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '\n' {
			p.pos++
		}
	case '\n':
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(c - '0')
		for i := 0; i < 2 && p.pos+1 < len(p.data); i++ {
			d := p.data[p.pos+1]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			p.pos++
		}
		out.WriteByte(byte(v & 0xFF))
	default:
		out.WriteByte(c)
	}
	p.pos++
}

func (p *parser) parseHexString() (Operand, error) {
	start := p.pos
	p.pos++ // '<'
	var digits []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
				if err != nil {
					return Operand{}, &SyntaxError{Pos: start, Msg: "invalid hex string"}
				}
				out[i] = byte(v)
			}
			return Operand{Kind: String, Str: string(out)}, nil
		}
		if isWhitespace(c) {
			continue
		}
		digits = append(digits, c)
	}
	return Operand{}, &SyntaxError{Pos: start, Msg: "unclosed hex string"}
}

func (p *parser) parseArray() (Operand, error) {
	start := p.pos
	p.pos++ // '['
	var items []Operand
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return Operand{}, &SyntaxError{Pos: start, Msg: "unclosed array"}
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return Operand{Kind: Array, Items: items}, nil
		}
		v, err := p.parseOperand()
		if err != nil {
			return Operand{}, err
		}
		items = append(items, v)
	}
}

func (p *parser) parseDict() (Operand, error) {
	start := p.pos
	p.pos += 2 // '<<'
	var items []Operand
	for {
		p.skipWhitespace()
		if p.pos+1 >= len(p.data) {
			return Operand{}, &SyntaxError{Pos: start, Msg: "unclosed dictionary"}
		}
		if p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2
			if len(items)%2 != 0 {
				return Operand{}, &SyntaxError{Pos: start, Msg: "dictionary with odd item count"}
			}
			return Operand{Kind: Dict, Items: items}, nil
		}
		v, err := p.parseOperand()
		if err != nil {
			return Operand{}, err
		}
		items = append(items, v)
	}
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isRegular(c byte) bool { return !isDelimiter(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

// DictValue returns the value for key in a Dict operand.
func (o Operand) DictValue(keys ...string) (Operand, bool) {
	for i := 0; i+1 < len(o.Items); i += 2 {
		if o.Items[i].Kind != Name {
			continue
		}
		for _, k := range keys {
			if o.Items[i].Str == k {
				return o.Items[i+1], true
			}
		}
	}
	return Operand{}, false
}
