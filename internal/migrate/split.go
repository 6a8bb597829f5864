package migrate

import "strings"

// splitStatements cuts a SQL script at top-level semicolons. Quoted strings,
// quoted identifiers, dollar-quoted bodies and comments are never split;
// comments outside bodies are dropped.
func splitStatements(src string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			j := skipQuoted(src, i, c)
			cur.WriteString(src[i:j])
			i = j
		case c == '-' && strings.HasPrefix(src[i:], "--"):
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				i = len(src)
			} else {
				i += j
			}
		case c == '/' && strings.HasPrefix(src[i:], "/*"):
			i = skipBlockComment(src, i)
			cur.WriteByte(' ')
		case c == '$':
			tag, ok := dollarTag(src[i:])
			if !ok {
				cur.WriteByte(c)
				i++
				continue
			}
			body := i + len(tag)
			end := strings.Index(src[body:], tag)
			j := len(src)
			if end >= 0 {
				j = body + end + len(tag)
			}
			cur.WriteString(src[i:j])
			i = j
		case c == ';':
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts
}

// skipQuoted returns the index just past the quote opened at start. A doubled
// quote is an escaped quote.
func skipQuoted(src string, start int, q byte) int {
	for i := start + 1; i < len(src); i++ {
		if src[i] != q {
			continue
		}
		if i+1 < len(src) && src[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(src)
}

// skipBlockComment honours nested /* */ pairs.
func skipBlockComment(src string, start int) int {
	depth := 0
	for i := start; i < len(src)-1; i++ {
		switch {
		case src[i] == '/' && src[i+1] == '*':
			depth++
			i++
		case src[i] == '*' && src[i+1] == '/':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}

// dollarTag reads $$ or $tag$ at the start of s. Positional parameters such
// as $1 are not tags.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1], true
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && j > 1:
		default:
			return "", false
		}
	}
	return "", false
}
