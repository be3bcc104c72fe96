package template

import (
	"regexp"
	"strings"
)

type itemType int

const (
	itemText itemType = iota
	itemOutput
	itemTag
	itemRaw
)

type item struct {
	typ itemType
	val string // text, or the trimmed inner source of an output/tag
	pos int    // byte offset of the item's first byte
}

var endRawPattern = regexp.MustCompile(`\{%-?\s*endraw\s*-?%\}`)

// scan splits src into text, output ({{ }}), tag ({% %}) and raw items.
// Comments ({# #}) are dropped. "-" next to a delimiter trims the adjacent
// whitespace of the neighbouring text.
func scan(name, src string) ([]item, error) {
	var items []item
	trimNext := false
	i := 0
	for i < len(src) {
		open := nextDelim(src, i)
		if open < 0 {
			items = appendText(items, src[i:], i, trimNext, false)
			break
		}
		trimPrev := open+2 < len(src) && src[open+2] == '-'
		items = appendText(items, src[i:open], i, trimNext, trimPrev)

		kind := src[open+1]
		closer := map[byte]string{'{': "}}", '%': "%}", '#': "#}"}[kind]
		innerStart := open + 2
		if trimPrev {
			innerStart++
		}
		end := closerIndex(src[innerStart:], closer, kind != '#')
		if end < 0 {
			return nil, syntaxErrorAt(name, src, open, "unclosed "+string(src[open:open+2]))
		}
		end += innerStart
		innerEnd := end
		trimNext = false
		if innerEnd > innerStart && src[innerEnd-1] == '-' {
			trimNext = true
			innerEnd--
		}
		inner := strings.TrimSpace(src[innerStart:innerEnd])
		i = end + 2

		switch kind {
		case '{':
			items = append(items, item{itemOutput, inner, open})
		case '%':
			if inner == "raw" {
				loc := endRawPattern.FindStringIndex(src[i:])
				if loc == nil {
					return nil, syntaxErrorAt(name, src, open, "raw block is never closed with {% endraw %}")
				}
				body := src[i : i+loc[0]]
				if trimNext {
					body = strings.TrimLeft(body, " \t\r\n")
				}
				closeTag := src[i+loc[0] : i+loc[1]]
				if strings.HasPrefix(closeTag, "{%-") {
					body = strings.TrimRight(body, " \t\r\n")
				}
				items = append(items, item{itemRaw, body, i})
				trimNext = strings.HasSuffix(closeTag, "-%}")
				i += loc[1]
				continue
			}
			items = append(items, item{itemTag, inner, open})
		case '#':
			// comment
		}
	}
	return items, nil
}

// closerIndex finds closer in s. When quoted is set, closers inside string
// literals do not count; an unterminated literal falls back to the first
// closer so the expression parser can report it.
func closerIndex(s, closer string, quoted bool) int {
	if !quoted {
		return strings.Index(s, closer)
	}
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(s[i:], closer):
			return i
		}
	}
	return strings.Index(s, closer)
}

// nextDelim returns the offset of the next "{{", "{%" or "{#" at or after i.
func nextDelim(src string, i int) int {
	for {
		j := strings.IndexByte(src[i:], '{')
		if j < 0 {
			return -1
		}
		j += i
		if j+1 < len(src) {
			switch src[j+1] {
			case '{', '%', '#':
				return j
			}
		}
		i = j + 1
	}
}

func appendText(items []item, text string, pos int, trimLeft, trimRight bool) []item {
	if trimLeft {
		trimmed := strings.TrimLeft(text, " \t\r\n")
		pos += len(text) - len(trimmed)
		text = trimmed
	}
	if trimRight {
		text = strings.TrimRight(text, " \t\r\n")
	}
	if text == "" {
		return items
	}
	return append(items, item{itemText, text, pos})
}
