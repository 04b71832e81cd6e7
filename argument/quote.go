package argument

import "strings"

// Quote returns s as a single shell-style word. Strings without whitespace,
// quotes or backslashes are returned unchanged; anything else is wrapped in
// single quotes, with embedded single quotes written as '\''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// collapseSpace trims s and reduces each run of whitespace outside quotes to
// a single space. Quoted text is copied as is.
func collapseSpace(s string) string {
	var (
		b       strings.Builder
		quote   rune
		escaped bool
		pending bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == quote {
				quote = 0
			} else if r == '\\' && quote == '"' {
				escaped = true
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pending = b.Len() > 0
			continue
		case r == '\'' || r == '"':
			quote = r
		case r == '\\':
			escaped = true
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
