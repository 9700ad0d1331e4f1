package privacy

import (
	"context"
	"regexp"
	"unicode/utf8"
)

type pattern struct {
	re         *regexp.Regexp
	piiType    PiiType
	confidence float64
	// group selects the submatch holding the value; 0 is the whole match.
	group int
}

// RegexDetector is a local, dependency-free Detector for the structured PII
// forms: email addresses, phone numbers, @handles and street addresses. It
// misses obfuscated forms ("alice at example dot com"), which the remote
// classifier is meant to catch.
type RegexDetector struct {
	patterns []pattern
}

// NewRegexDetector compiles the built-in patterns.
func NewRegexDetector() *RegexDetector {
	return &RegexDetector{patterns: []pattern{
		{
			re:         regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			piiType:    PiiEmail,
			confidence: 0.99,
		},
		{
			re:         regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
			piiType:    PiiPhone,
			confidence: 0.9,
		},
		{
			re:         regexp.MustCompile(`(?:^|[\s(,;:])(@[A-Za-z0-9_]{2,30})\b`),
			piiType:    PiiHandle,
			confidence: 0.7,
			group:      1,
		},
		{
			re:         regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[A-Za-z]+\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl)\b\.?`),
			piiType:    PiiAddress,
			confidence: 0.8,
		},
	}}
}

// Detect never fails. Spans come back grouped by pattern, not by position.
func (d *RegexDetector) Detect(_ context.Context, text string) (Detection, error) {
	var spans []PiiSpan
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			s, e := loc[2*p.group], loc[2*p.group+1]
			if s < 0 {
				continue
			}
			spans = append(spans, PiiSpan{
				Type:          string(p.piiType),
				OriginalValue: text[s:e],
				Start:         utf8.RuneCountInString(text[:s]),
				End:           utf8.RuneCountInString(text[:e]),
				Confidence:    p.confidence,
			})
		}
	}
	return Detection{HasPii: len(spans) > 0, Spans: spans}, nil
}
