package openrouter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonnkraft/funnel-backend/internal/config"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := NewClient(config.AIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Model:          "test-model",
		VisionModel:    "test-vision-model",
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, logger)
	c.retry.sleep = func(context.Context, time.Duration) error { return nil }
	c.retry.jitter = func() time.Duration { return 0 }
	return c
}

func TestGenerateTextExtractsCitations(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{
			"content":"Bis zu 40 Prozent Förderung sind möglich.",
			"annotations":[
				{"type":"url_citation","url_citation":{"url":"https://example.org/foerderung","title":"Förderprogramme 2026"}},
				{"type":"file_citation"}
			]
		}}]}`)
	})

	text, sources, err := c.GenerateText(context.Background(), "Welche Förderung gibt es?")
	require.NoError(t, err)
	assert.Equal(t, "Bis zu 40 Prozent Förderung sind möglich.", text)
	require.Len(t, sources, 1, "foreign annotation types are skipped")
	assert.Equal(t, types.Source{URI: "https://example.org/foerderung", Title: "Förderprogramme 2026"}, sources[0])
}

func TestGenerateTextWithoutAnnotations(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Hallo!"}}]}`)
	})

	text, sources, err := c.GenerateText(context.Background(), "Hallo")
	require.NoError(t, err)
	assert.Equal(t, "Hallo!", text)
	assert.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestGenerateTextRetriesRateLimit(t *testing.T) {
	requests := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limited"}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Antwort"}}]}`)
	})

	text, _, err := c.GenerateText(context.Background(), "frage")
	require.NoError(t, err)
	assert.Equal(t, "Antwort", text)
	assert.Equal(t, 2, requests)
}

func TestGenerateTextPermanentErrorNotRetried(t *testing.T) {
	requests := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})

	_, _, err := c.GenerateText(context.Background(), "frage")
	require.Error(t, err)
	assert.Equal(t, 1, requests)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGenerateStreamRetriesOnlyStreamCreation(t *testing.T) {
	requests := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hal\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	full, err := c.GenerateStream(context.Background(), "frage", func(chunk string) error {
		deltas = append(deltas, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", full)
	assert.Equal(t, 2, requests)
	// Each chunk is delivered exactly once even though opening was retried.
	assert.Equal(t, []string{"Hal", "lo"}, deltas)
}
