package adjust

import (
	"fmt"
	"strings"

	"risparmi/internal/core"
)

// Extract returns the first top-level balanced brace span of text, braces
// included. Braces inside quoted strings do not count toward nesting.
// It returns "" when text has no '{' or the first span never closes.
func Extract(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// Interpret extracts the mapping from a model reply and parses it strictly.
func Interpret(reply string) (core.ExpenseMap, error) {
	span := Extract(reply)
	if span == "" {
		return core.ExpenseMap{}, fmt.Errorf("%w: no mapping found in reply", core.ErrMalformedOutput)
	}
	return ParseMapping(span)
}
