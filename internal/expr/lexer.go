package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokInt
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
	tokPipe
	tokEq
	tokNeq
	tokNot
	tokAnd
	tokOr
	tokIn
	tokTrue
	tokFalse
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokInt:
		return "integer"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	case tokPipe:
		return "'|'"
	case tokEq:
		return "'=='"
	case tokNeq:
		return "'!='"
	case tokNot:
		return "'not'"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokIn:
		return "'in'"
	case tokTrue, tokFalse:
		return "boolean"
	default:
		return "token"
	}
}

type token struct {
	typ tokenType
	val string
	pos int
}

var keywords = map[string]tokenType{
	"not":   tokNot,
	"and":   tokAnd,
	"or":    tokOr,
	"in":    tokIn,
	"true":  tokTrue,
	"false": tokFalse,
}

// lex splits src into tokens. Positions are byte offsets into src.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case r == '"' || r == '\'':
			s, n, err := lexString(src, i, r)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case unicode.IsDigit(r):
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, token{tokInt, src[start:i], start})
		case isIdentStart(r):
			start := i
			for i < len(src) {
				r, w := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += w
			}
			word := src[start:i]
			if kw, ok := keywords[word]; ok {
				toks = append(toks, token{kw, word, start})
			} else {
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			typ, n := lexPunct(src[i:])
			if n == 0 {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			toks = append(toks, token{typ, src[i : i+n], i})
			i += n
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func lexPunct(s string) (tokenType, int) {
	two := ""
	if len(s) >= 2 {
		two = s[:2]
	}
	switch two {
	case "==":
		return tokEq, 2
	case "!=":
		return tokNeq, 2
	case "&&":
		return tokAnd, 2
	case "||":
		return tokOr, 2
	}
	switch s[0] {
	case '(':
		return tokLParen, 1
	case ')':
		return tokRParen, 1
	case '[':
		return tokLBracket, 1
	case ']':
		return tokRBracket, 1
	case ',':
		return tokComma, 1
	case '.':
		return tokDot, 1
	case '|':
		return tokPipe, 1
	case '!':
		return tokNot, 1
	}
	return 0, 0
}

func lexString(src string, start int, quote rune) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case rune(c) == quote:
			return b.String(), i + 1 - start, nil
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(src[i])
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
