package loader

import "strings"

// blankComments replaces block comments, and line comments when lineComments
// is set, with spaces. Newlines are kept so offsets and line numbers of the
// result match src. String literals and url(...) tokens are left alone, so
// protocol-relative urls survive. A "//" preceded by ':' is not a comment
// either (http://...).
func blankComments(src string, lineComments bool) string {
	var sb strings.Builder
	sb.Grow(len(src))
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			sb.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(src) {
					i++
					sb.WriteByte(src[i])
				}
			case quote:
				quote = 0
			case '\n':
				if quote != '`' {
					quote = 0
				}
			}
			continue
		}
		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			sb.WriteByte(c)
		case isURLStart(src, i):
			end := strings.IndexAny(src[i:], ")\n")
			stop := len(src)
			if end >= 0 {
				stop = i + end
			}
			sb.WriteString(src[i:stop])
			i = stop - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			stop := len(src)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			blank(&sb, src[i:stop])
			i = stop - 1
		case lineComments && c == '/' && i+1 < len(src) && src[i+1] == '/' && (i == 0 || src[i-1] != ':'):
			end := strings.IndexByte(src[i:], '\n')
			stop := len(src)
			if end >= 0 {
				stop = i + end
			}
			blank(&sb, src[i:stop])
			i = stop - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// isURLStart reports whether an unquoted url( token starts at i.
func isURLStart(src string, i int) bool {
	if i+4 > len(src) || !strings.EqualFold(src[i:i+4], "url(") {
		return false
	}
	if i > 0 && isIdentByte(src[i-1]) {
		return false
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func blank(sb *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
}

// lineAt returns the 1-based line number of offset in s.
func lineAt(s string, offset int) int {
	if offset > len(s) {
		offset = len(s)
	}
	return strings.Count(s[:offset], "\n") + 1
}
