package adjust

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"risparmi/internal/core"
)

var numberPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// ParseMapping reads a flat mapping literal such as {'Rent': 860, "Food": 500.0}.
// Keys are single- or double-quoted strings, values are plain numbers and a
// trailing comma is allowed. Anything else, including trailing text after the
// closing brace, fails with core.ErrMalformedOutput.
func ParseMapping(s string) (core.ExpenseMap, error) {
	p := literalParser{src: s}
	m, err := p.mapping()
	if err != nil {
		return core.ExpenseMap{}, fmt.Errorf("%w: %w", core.ErrMalformedOutput, err)
	}
	return m, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) mapping() (core.ExpenseMap, error) {
	var m core.ExpenseMap

	p.skipSpace()
	if err := p.expect('{'); err != nil {
		return m, err
	}
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return m, p.end()
	}

	for {
		key, err := p.str()
		if err != nil {
			return m, err
		}
		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return m, err
		}
		p.skipSpace()
		val, err := p.number()
		if err != nil {
			return m, fmt.Errorf("value of %q: %w", key, err)
		}
		if err := m.Set(key, val); err != nil {
			return m, err
		}

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return m, p.end()
			}
		case '}':
			p.pos++
			return m, p.end()
		default:
			return m, p.unexpected("',' or '}'")
		}
	}
}

func (p *literalParser) end() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return fmt.Errorf("trailing text at offset %d", p.pos)
	}
	return nil
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) expect(c byte) error {
	if p.peek() != c {
		return p.unexpected(strconv.QuoteRune(rune(c)))
	}
	p.pos++
	return nil
}

func (p *literalParser) unexpected(want string) error {
	if p.pos >= len(p.src) {
		return fmt.Errorf("unexpected end of input, want %s", want)
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return fmt.Errorf("unexpected %q at offset %d, want %s", r, p.pos, want)
}

func (p *literalParser) str() (string, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", p.unexpected("quoted key")
	}
	p.pos++

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", fmt.Errorf("newline in string at offset %d", p.pos)
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *literalParser) escape(b *strings.Builder) error {
	if p.pos+1 >= len(p.src) {
		return fmt.Errorf("unterminated escape")
	}
	c := p.src[p.pos+1]
	p.pos += 2
	switch c {
	case '\\', '\'', '"', '/':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'u':
		if p.pos+4 > len(p.src) {
			return fmt.Errorf("short \\u escape")
		}
		v, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
		if err != nil {
			return fmt.Errorf("bad \\u escape: %w", err)
		}
		b.WriteRune(rune(v))
		p.pos += 4
	default:
		return fmt.Errorf("unsupported escape \\%c", c)
	}
	return nil
}

func (p *literalParser) number() (decimal.Decimal, error) {
	lit := numberPattern.FindString(p.src[p.pos:])
	if lit == "" {
		return decimal.Decimal{}, p.unexpected("number")
	}
	p.pos += len(lit)

	d, err := decimal.NewFromString(strings.TrimPrefix(lit, "+"))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", core.ErrNonNumeric, lit)
	}
	if err := core.CheckAmount(d); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%q: %w", lit, err)
	}
	return d, nil
}
