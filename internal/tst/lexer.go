package tst

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokFormat // the text after '%', e.g. "D1.6.1" or "X1F"
	tokComma
	tokSemi
	tokBang
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of script"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "number"
	case tokString:
		return "string"
	case tokFormat:
		return "format"
	case tokComma:
		return "','"
	case tokSemi:
		return "';'"
	case tokBang:
		return "'!'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokOp:
		return "comparison"
	}
	return "token"
}

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	line  int
	col   int
}

var single = map[byte]tokenKind{
	',': tokComma, ';': tokSemi, '!': tokBang,
	'{': tokLBrace, '}': tokRBrace, '[': tokLBracket, ']': tokRBracket,
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '.' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-' || c == '/'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) errorf(line, col, offset int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Col: col, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			line, col, off := l.line, l.col, l.pos
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(line, col, off, "unterminated comment")
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	tok := token{start: l.pos, line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		tok.end = l.pos
		return tok, nil
	}

	c := l.src[l.pos]
	switch {
	case single[c] != 0:
		tok.kind = single[c]
		l.advance(1)
	case c == '=' || c == '<' || c == '>':
		n := 1
		if rest := l.src[l.pos:]; strings.HasPrefix(rest, "<>") || strings.HasPrefix(rest, "<=") || strings.HasPrefix(rest, ">=") {
			n = 2
		}
		tok.kind = tokOp
		l.advance(n)
	case c == '"':
		end := strings.IndexByte(l.src[l.pos+1:], '"')
		if end < 0 {
			return token{}, l.errorf(tok.line, tok.col, tok.start, "unterminated string")
		}
		if nl := strings.IndexByte(l.src[l.pos+1:l.pos+1+end], '\n'); nl >= 0 {
			return token{}, l.errorf(tok.line, tok.col, tok.start, "unterminated string")
		}
		tok.kind = tokString
		tok.text = l.src[l.pos+1 : l.pos+1+end]
		l.advance(end + 2)
		tok.end = l.pos
		return tok, nil
	case c == '%':
		l.advance(1)
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.advance(1)
		}
		tok.kind = tokFormat
		tok.text = l.src[tok.start+1 : l.pos]
		if tok.text == "" {
			return token{}, l.errorf(tok.line, tok.col, tok.start, "expected format after '%%'")
		}
		tok.end = l.pos
		return tok, nil
	case isDigit(c) || (c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.advance(1)
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.advance(1)
		}
		tok.kind = tokInt
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.advance(1)
		}
		tok.kind = tokIdent
	default:
		return token{}, l.errorf(tok.line, tok.col, tok.start, "unexpected character %q", c)
	}
	tok.end = l.pos
	tok.text = l.src[tok.start:tok.end]
	return tok, nil
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}
