package margin

import (
	"regexp"
	"strings"
)

var readVerb = regexp.MustCompile(`(?i)^select\b`)

// ValidateReadOnly accepts a single SELECT statement. Semicolons inside
// quoted literals, quoted identifiers and comments are ignored; a top-level
// semicolon may only be followed by whitespace or comments. The query itself
// is never rewritten, only inspected.
func ValidateReadOnly(query string) error {
	q := strings.TrimSpace(query)

	switch {
	case strings.Trim(q, "; \t\r\n") == "":
		return &InvalidQueryError{Query: query, Reason: "query is empty"}
	case !readVerb.MatchString(q):
		return &InvalidQueryError{Query: query, Reason: "only SELECT queries are allowed"}
	case hasSecondStatement(q):
		return &InvalidQueryError{Query: query, Reason: "multiple statements are not allowed"}
	}
	return nil
}

// hasSecondStatement scans q for SQL text after a top-level semicolon.
func hasSecondStatement(q string) bool {
	ended := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'' || c == '"':
			if ended {
				return true
			}
			i = closingQuote(q, i)
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			end := strings.IndexByte(q[i:], '\n')
			if end < 0 {
				return false
			}
			i += end
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		case c == ';':
			ended = true
		case ended && c != ' ' && c != '\t' && c != '\n' && c != '\r':
			return true
		}
	}
	return false
}

// closingQuote returns the index of the quote closing the one at open. A
// doubled quote is an escaped quote. Unterminated literals run to the end.
func closingQuote(q string, open int) int {
	quote := q[open]
	for j := open + 1; j < len(q); j++ {
		if q[j] != quote {
			continue
		}
		if j+1 < len(q) && q[j+1] == quote {
			j++
			continue
		}
		return j
	}
	return len(q) - 1
}
