package privacy

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifierServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m", req.Model)
		assert.Equal(t, classifierPrompt, req.System)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClassifier(url string) *ClassifierDetector {
	return NewClassifierDetector(nil, ClassifierConfig{URL: url, APIKey: "k", Model: "m"})
}

func TestClassifier_ParsesFencedReply(t *testing.T) {
	reply := "```json\n{\"hasPII\": true, \"piiItems\": [{\"type\": \"email\", \"original_value\": \"alice@x.com\", \"start_index\": 12.0, \"end_index\": 23, \"confidence\": 0.98}]}\n```"
	srv := classifierServer(t, http.StatusOK, reply)

	det, err := newClassifier(srv.URL).Detect(context.Background(), "reach me at alice@x.com please")
	require.NoError(t, err)

	assert.True(t, det.HasPii)
	require.Len(t, det.Spans, 1)
	assert.Equal(t, PiiSpan{Type: "email", OriginalValue: "alice@x.com", Start: 12, End: 23, Confidence: 0.98}, det.Spans[0])
}

func TestClassifier_OutOfRangeOffsetsAreBounded(t *testing.T) {
	reply := `{"hasPII": true, "piiItems": [{"type": "email", "original_value": "alice@x.com", "start_index": -3, "end_index": 1e20, "confidence": 0.9}]}`
	srv := classifierServer(t, http.StatusOK, reply)

	det, err := newClassifier(srv.URL).Detect(context.Background(), "reach me at alice@x.com please")
	require.NoError(t, err)
	require.Len(t, det.Spans, 1)
	assert.Equal(t, 0, det.Spans[0].Start)
	assert.Equal(t, math.MaxInt32, det.Spans[0].End)
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 12, offset(12.7))
	assert.Equal(t, 0, offset(-1))
	assert.Equal(t, 0, offset(math.NaN()))
	assert.Equal(t, math.MaxInt32, offset(math.Inf(1)))
	assert.Equal(t, math.MaxInt32, offset(1e20))
}

func TestClassifier_NoKeyIsUnavailable(t *testing.T) {
	d := NewClassifierDetector(nil, ClassifierConfig{URL: "http://127.0.0.1:1"})
	_, err := d.Detect(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}

func TestClassifier_BadStatusIsUnavailable(t *testing.T) {
	srv := classifierServer(t, http.StatusTooManyRequests, "{}")
	_, err := newClassifier(srv.URL).Detect(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}

func TestClassifier_GarbageIsMalformed(t *testing.T) {
	for _, reply := range []string{"I cannot help with that", "{not json}"} {
		srv := classifierServer(t, http.StatusOK, reply)
		_, err := newClassifier(srv.URL).Detect(context.Background(), "x")
		assert.ErrorIs(t, err, ErrDetectorMalformed, reply)
	}
}

func TestClassifier_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newClassifier(srv.URL).Detect(ctx, "x")
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := extractJSONObject("sure! {\"a\": {\"b\": 1}} bye")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, ok = extractJSONObject("} nope {")
	assert.False(t, ok)
}
