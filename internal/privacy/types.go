// Package privacy finds PII in comment text, swaps it for vault tokens
// before the text is stored, and rebuilds per-viewer text on read.
//
// The flow is Detector -> Tokenizer -> (comment text + vault entries stored)
// and later stored text + viewer identity -> Resolver -> viewer text.
//
// Detection is best effort. A detector that is down, slow or returns garbage
// makes the Tokenizer store the text untouched; a missed span is accepted as
// a false negative rather than blocking the comment.
package privacy

import (
	"errors"
	"strings"
)

// PiiType classifies a detected span. It is part of the persisted token
// format, so values are lowercase ASCII letters only.
type PiiType string

const (
	PiiEmail   PiiType = "email"
	PiiPhone   PiiType = "phone"
	PiiHandle  PiiType = "handle"
	PiiAddress PiiType = "address"
)

// KnownTypes lists every PiiType the vault accepts.
var KnownTypes = []PiiType{PiiEmail, PiiPhone, PiiHandle, PiiAddress}

// ParsePiiType normalizes s and reports whether it names a known type.
func ParsePiiType(s string) (PiiType, bool) {
	t := PiiType(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range KnownTypes {
		if t == k {
			return t, true
		}
	}
	return "", false
}

// PiiSpan is one detector finding. Start and End are rune offsets into the
// scanned text, End exclusive. Detectors are not trusted: spans may be
// unordered, overlapping or out of range.
type PiiSpan struct {
	Type          string  `json:"type"`
	OriginalValue string  `json:"original_value"`
	Start         int     `json:"start_index"`
	End           int     `json:"end_index"`
	Confidence    float64 `json:"confidence"`
}

// Detection is the result of a successful scan.
type Detection struct {
	HasPii bool
	Spans  []PiiSpan
}

var (
	// ErrDetectorUnavailable means the detector could not be reached, was not
	// configured or ran out of time.
	ErrDetectorUnavailable = errors.New("pii detector unavailable")

	// ErrDetectorMalformed means the detector answered with something that
	// could not be decoded into a Detection.
	ErrDetectorMalformed = errors.New("pii detector returned malformed result")
)
