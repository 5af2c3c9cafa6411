package gerber

import (
	"strings"

	"github.com/pcbforge/pcbforge/pkg/errors"
)

// part is one '*'-terminated word with its source location.
type part struct {
	text string
	line int
	col  int
}

// token is either a single function word or an extended command
// (%...%) holding one or more words.
type token struct {
	ext   bool
	parts []part
	line  int
	col   int
}

// lex splits raw Gerber text into tokens. Whitespace between words is
// insignificant; line and column numbers are 1-based and point at the
// first character of each word.
func lex(source string, data []byte) ([]token, error) {
	var tokens []token

	line, col := 1, 1
	var buf strings.Builder
	bufLine, bufCol := 0, 0

	var extParts []part
	inExt := false
	extLine, extCol := 0, 0

	flushWord := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		p := part{text: text, line: bufLine, col: bufCol}
		if inExt {
			extParts = append(extParts, p)
		} else {
			tokens = append(tokens, token{parts: []part{p}, line: p.line, col: p.col})
		}
	}

	for _, c := range string(data) {
		switch c {
		case '%':
			flushWord()
			if inExt {
				if len(extParts) == 0 {
					return nil, errors.NewParse(source, extLine, extCol, "empty extended command")
				}
				tokens = append(tokens, token{ext: true, parts: extParts, line: extLine, col: extCol})
				extParts = nil
				inExt = false
			} else {
				inExt = true
				extLine, extCol = line, col
			}
		case '*':
			flushWord()
		case '\n':
			line++
			col = 0
		case '\r', ' ', '\t':
			// separators only
		default:
			if buf.Len() == 0 {
				bufLine, bufCol = line, col
			}
			buf.WriteRune(c)
		}
		col++
	}

	if inExt {
		return nil, errors.NewParse(source, extLine, extCol, "unterminated extended command")
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		return nil, errors.NewParse(source, bufLine, bufCol, "trailing text %q without terminator", rest)
	}
	return tokens, nil
}
