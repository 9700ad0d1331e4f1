package privacy

import "fmt"

// Tokens look like [PII:<type>:<uuid>], i.e. the grammar
// \[PII:[a-z]+:[0-9a-f-]+\]. It is the only in-band PII marker allowed in
// persisted text.
const tokenPrefix = "[PII:"

// FormatToken builds the token for a span of type t with identifier id.
func FormatToken(t PiiType, id string) string {
	return fmt.Sprintf("%s%s:%s]", tokenPrefix, t, id)
}

// tokenMatch is a token occurrence at text[start:end].
type tokenMatch struct {
	start   int
	end     int
	piiType string
}

func (m tokenMatch) token(text string) string {
	return text[m.start:m.end]
}

// scanTokens returns all non-overlapping tokens in text, left to right.
// Malformed candidates are skipped; the scan never reads past len(text).
func scanTokens(text string) []tokenMatch {
	var out []tokenMatch
	for i := 0; i+len(tokenPrefix) <= len(text); {
		if text[i:i+len(tokenPrefix)] != tokenPrefix {
			i++
			continue
		}
		m, ok := matchTokenAt(text, i)
		if !ok {
			i++
			continue
		}
		out = append(out, m)
		i = m.end
	}
	return out
}

// matchTokenAt tries to read one token starting at text[start], which is
// known to begin with tokenPrefix.
func matchTokenAt(text string, start int) (tokenMatch, bool) {
	p := start + len(tokenPrefix)

	typeStart := p
	for p < len(text) && isLower(text[p]) {
		p++
	}
	if p == typeStart || p >= len(text) || text[p] != ':' {
		return tokenMatch{}, false
	}
	piiType := text[typeStart:p]
	p++

	idStart := p
	for p < len(text) && isHexOrDash(text[p]) {
		p++
	}
	if p == idStart || p >= len(text) || text[p] != ']' {
		return tokenMatch{}, false
	}

	return tokenMatch{start: start, end: p + 1, piiType: piiType}, true
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isHexOrDash(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || c == '-'
}
