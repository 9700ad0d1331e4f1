package privacy

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sujalbistaa/privacynet/internal/logging"
	"github.com/sujalbistaa/privacynet/internal/models"
)

// TokenizerConfig tunes a Tokenizer. The zero value is usable.
type TokenizerConfig struct {
	// Timeout bounds a single detector call. Zero means no extra bound beyond
	// the caller's context.
	Timeout time.Duration
	// MinConfidence discards spans scored below it. Zero keeps every span.
	MinConfidence float64
}

// TokenizeResult is the redacted text plus the vault entries to persist.
type TokenizeResult struct {
	Text     string
	Entries  []models.VaultEntry
	PiiCount int
	// Dropped counts spans the detector reported that were not tokenized:
	// overlapping, low-confidence, unknown type or empty.
	Dropped int
	// Degraded is set when the detector failed and the text was kept as is.
	Degraded bool
}

// PartialScan reports whether some detector findings were discarded.
func (r TokenizeResult) PartialScan() bool {
	return r.Dropped > 0
}

// Tokenizer replaces detected PII spans with vault tokens. It performs no
// persistence; the caller stores the text and entries.
type Tokenizer struct {
	detector Detector
	log      logging.Logger
	cfg      TokenizerConfig
	newID    func() string
}

func NewTokenizer(detector Detector, log logging.Logger, cfg TokenizerConfig) *Tokenizer {
	return &Tokenizer{
		detector: detector,
		log:      log,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// Tokenize scans rawText and returns it with every accepted span replaced by
// a fresh token. Detector failures and malformed spans never surface as
// errors: the text degrades to fewer (or no) replacements instead.
func (t *Tokenizer) Tokenize(ctx context.Context, rawText, commentID, authorID string) TokenizeResult {
	det, err := t.detect(ctx, rawText)
	if err != nil {
		t.log.Warn(ctx, "pii detection skipped", "comment_id", commentID, "error", err)
		return TokenizeResult{Text: rawText, Degraded: true}
	}
	if !det.HasPii || len(det.Spans) == 0 {
		return TokenizeResult{Text: rawText}
	}

	spans, dropped := t.acceptable(det.Spans)
	spans, overlapping := nonOverlapping(spans)
	dropped += overlapping

	runes := []rune(rawText)
	n := len(runes)

	var b strings.Builder
	entries := make([]models.VaultEntry, 0, len(spans))
	pos := 0

	for _, sp := range spans {
		s := clamp(sp.Start, 0, n)
		e := clamp(sp.End, s, n)
		if s < pos {
			s = pos
			e = max(e, s)
		}
		if e == s {
			// Offsets point at nothing. Only tokenize when the reported value
			// can be found and cut out of the remaining text.
			var ok bool
			if s, e, ok = locate(runes, pos, sp.OriginalValue); !ok {
				dropped++
				continue
			}
		}

		value := sp.OriginalValue
		if value == "" {
			value = string(runes[s:e])
		}

		piiType, _ := ParsePiiType(sp.Type)
		token := FormatToken(piiType, t.newID())

		b.WriteString(string(runes[pos:s]))
		b.WriteString(token)
		entries = append(entries, models.VaultEntry{
			Token:     token,
			PiiType:   string(piiType),
			Value:     value,
			CommentID: commentID,
			AuthorID:  authorID,
			Position:  len(entries),
		})
		pos = e
	}
	b.WriteString(string(runes[pos:]))

	if dropped > 0 {
		t.log.Warn(ctx, "pii spans discarded", "comment_id", commentID, "dropped", dropped, "kept", len(entries))
	}

	return TokenizeResult{
		Text:     b.String(),
		Entries:  entries,
		PiiCount: len(entries),
		Dropped:  dropped,
	}
}

func (t *Tokenizer) detect(ctx context.Context, text string) (Detection, error) {
	if t.detector == nil {
		return Detection{}, ErrDetectorUnavailable
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	det, err := t.detector.Detect(ctx, text)
	if err == nil {
		return det, nil
	}
	if errors.Is(err, ErrDetectorUnavailable) || errors.Is(err, ErrDetectorMalformed) {
		return Detection{}, err
	}
	// Anything else (a deadline from the caller's context, a transport error
	// a detector forgot to wrap) is still an unavailable detector.
	return Detection{}, errors.Join(ErrDetectorUnavailable, err)
}

// acceptable drops spans with an unknown type or a confidence below the
// configured floor.
func (t *Tokenizer) acceptable(spans []PiiSpan) ([]PiiSpan, int) {
	out := make([]PiiSpan, 0, len(spans))
	dropped := 0
	for _, sp := range spans {
		if _, ok := ParsePiiType(sp.Type); !ok {
			dropped++
			continue
		}
		if t.cfg.MinConfidence > 0 && sp.Confidence < t.cfg.MinConfidence {
			dropped++
			continue
		}
		out = append(out, sp)
	}
	return out, dropped
}

// nonOverlapping sorts spans by start and keeps a span only when it starts at
// or after the end of the last kept span. The leftmost span wins.
func nonOverlapping(spans []PiiSpan) ([]PiiSpan, int) {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})

	kept := make([]PiiSpan, 0, len(spans))
	dropped := 0
	for _, sp := range spans {
		if len(kept) > 0 && sp.Start < kept[len(kept)-1].End {
			dropped++
			continue
		}
		kept = append(kept, sp)
	}
	return kept, dropped
}

// locate returns the rune range of the first occurrence of value at or after
// rune index from.
func locate(runes []rune, from int, value string) (int, int, bool) {
	if value == "" {
		return 0, 0, false
	}
	rest := string(runes[from:])
	i := strings.Index(rest, value)
	if i < 0 {
		return 0, 0, false
	}
	s := from + utf8.RuneCountInString(rest[:i])
	return s, s + utf8.RuneCountInString(value), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
