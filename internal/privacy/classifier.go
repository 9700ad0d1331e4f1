package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
)

const classifierPrompt = `You detect personally identifiable information (PII) in user comments, including obfuscated forms.

Types: email (also spelled out, e.g. "alice dot chen at gmail dot com"), phone (also spoken digits), handle (social handles given as contact info), address (physical addresses).

Offsets are character (code point) indices into the comment, end exclusive.

Return ONLY valid JSON, no markdown:
{
  "hasPII": boolean,
  "piiItems": [
    { "type": "email|phone|handle|address", "original_value": "exact matched text", "start_index": 0, "end_index": 20, "confidence": 0.99 }
  ]
}`

const (
	anthropicVersion   = "2023-06-01"
	classifierMaxToken = 800
	maxClassifierBody  = 1 << 20
)

// ClassifierConfig configures the remote classifier.
type ClassifierConfig struct {
	URL    string
	APIKey string
	Model  string
}

// ClassifierDetector asks a hosted language model (Anthropic Messages API)
// to find PII. Every failure is reported as ErrDetectorUnavailable or
// ErrDetectorMalformed; the call deadline comes from ctx.
type ClassifierDetector struct {
	client *http.Client
	cfg    ClassifierConfig
}

func NewClassifierDetector(client *http.Client, cfg ClassifierConfig) *ClassifierDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClassifierDetector{client: client, cfg: cfg}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// classifierItem uses floats for offsets: models sometimes emit 12.0.
type classifierItem struct {
	Type          string  `json:"type"`
	OriginalValue string  `json:"original_value"`
	StartIndex    float64 `json:"start_index"`
	EndIndex      float64 `json:"end_index"`
	Confidence    float64 `json:"confidence"`
}

type classifierResult struct {
	HasPII   bool             `json:"hasPII"`
	PiiItems []classifierItem `json:"piiItems"`
}

func (d *ClassifierDetector) Detect(ctx context.Context, text string) (Detection, error) {
	if d.cfg.APIKey == "" {
		return Detection{}, fmt.Errorf("%w: no API key configured", ErrDetectorUnavailable)
	}

	reqBody, err := json.Marshal(messagesRequest{
		Model:     d.cfg.Model,
		MaxTokens: classifierMaxToken,
		System:    classifierPrompt,
		Messages:  []message{{Role: "user", Content: "Scan for PII:\n" + text}},
	})
	if err != nil {
		return Detection{}, fmt.Errorf("%w: encode request: %v", ErrDetectorUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(reqBody))
	if err != nil {
		return Detection{}, fmt.Errorf("%w: create request: %v", ErrDetectorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", d.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := d.client.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Detection{}, fmt.Errorf("%w: status %d", ErrDetectorUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClassifierBody))
	if err != nil {
		return Detection{}, fmt.Errorf("%w: read body: %v", ErrDetectorUnavailable, err)
	}

	var mr messagesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return Detection{}, fmt.Errorf("%w: %v", ErrDetectorMalformed, err)
	}

	var raw string
	for _, c := range mr.Content {
		if c.Type == "" || c.Type == "text" {
			raw = c.Text
			break
		}
	}

	obj, ok := extractJSONObject(raw)
	if !ok {
		return Detection{}, fmt.Errorf("%w: no JSON object in reply", ErrDetectorMalformed)
	}

	var res classifierResult
	if err := json.Unmarshal([]byte(obj), &res); err != nil {
		return Detection{}, fmt.Errorf("%w: %v", ErrDetectorMalformed, err)
	}

	spans := make([]PiiSpan, 0, len(res.PiiItems))
	for _, it := range res.PiiItems {
		spans = append(spans, PiiSpan{
			Type:          it.Type,
			OriginalValue: it.OriginalValue,
			Start:         offset(it.StartIndex),
			End:           offset(it.EndIndex),
			Confidence:    it.Confidence,
		})
	}
	return Detection{HasPii: res.HasPII, Spans: spans}, nil
}

// offset converts a model-reported index to int, bounding it to
// [0, math.MaxInt32] so huge or non-finite values cannot wrap.
func offset(f float64) int {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

// extractJSONObject pulls the outermost {...} out of a model reply, which may
// be wrapped in ```json fences or chatter.
func extractJSONObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
