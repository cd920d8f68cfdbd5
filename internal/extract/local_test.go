package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

func chatServer(t *testing.T, handler func(req chatRequest) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		content, status := handler(req)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestLocalExtract(t *testing.T) {
	server := chatServer(t, func(req chatRequest) (string, int) {
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		return `[{"description": "Coffee Shop", "amount": 5.50, "date": "2025-01-10", "type": "card"}]`, http.StatusOK
	})
	defer server.Close()

	local := NewLocal(server.URL+"/v1", "test-model", false, 5, logging.NewMockLogger())
	unit := models.RawUnit{Kind: models.SourcePDF, Origin: "statement.pdf", Text: "some page text"}

	candidates, err := local.Extract(context.Background(), unit)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, "Coffee Shop", candidates[0].Description)
	assert.Equal(t, "5.5", candidates[0].RawAmount)
	assert.Equal(t, "local-llm", candidates[0].Provider)
	assert.Equal(t, "statement.pdf#1", candidates[0].Source)
	assert.Equal(t, 0.75, candidates[0].Confidence)
}

func TestLocalExtractStricterRetry(t *testing.T) {
	calls := 0
	server := chatServer(t, func(req chatRequest) (string, int) {
		calls++
		if calls == 1 {
			return "Sure! Unfortunately I cannot produce the format you asked for.", http.StatusOK
		}
		return `[{"description": "Coffee Shop", "amount": 5.50, "date": "2025-01-10"}]`, http.StatusOK
	})
	defer server.Close()

	local := NewLocal(server.URL+"/v1", "test-model", false, 5, logging.NewMockLogger())
	candidates, err := local.Extract(context.Background(), models.RawUnit{Text: "page"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "malformed output triggers one stricter retry")
	assert.Len(t, candidates, 1)
}

func TestLocalExtractMalformedTwice(t *testing.T) {
	server := chatServer(t, func(req chatRequest) (string, int) {
		return "still not json", http.StatusOK
	})
	defer server.Close()

	local := NewLocal(server.URL+"/v1", "test-model", false, 5, logging.NewMockLogger())
	_, err := local.Extract(context.Background(), models.RawUnit{Text: "page"})
	require.Error(t, err)

	var malformed *importerror.MalformedExtractionError
	assert.True(t, errors.As(err, &malformed))
}

func TestLocalExtractServerError(t *testing.T) {
	server := chatServer(t, func(req chatRequest) (string, int) {
		return "", http.StatusInternalServerError
	})
	defer server.Close()

	local := NewLocal(server.URL+"/v1", "test-model", false, 5, logging.NewMockLogger())
	_, err := local.Extract(context.Background(), models.RawUnit{Text: "page"})
	require.Error(t, err)

	var unavailable *importerror.ProviderUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestLocalExtractServerDown(t *testing.T) {
	server := chatServer(t, func(req chatRequest) (string, int) { return "", http.StatusOK })
	server.Close() // connection refused from here on

	local := NewLocal(server.URL+"/v1", "test-model", false, 5, logging.NewMockLogger())
	_, err := local.Extract(context.Background(), models.RawUnit{Text: "page"})
	require.Error(t, err)

	var unavailable *importerror.ProviderUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestLocalSendsImageAsDataURL(t *testing.T) {
	var gotContent any
	server := chatServer(t, func(req chatRequest) (string, int) {
		gotContent = req.Messages[0].Content
		return `[]`, http.StatusOK
	})
	defer server.Close()

	local := NewLocal(server.URL+"/v1", "test-model", true, 5, logging.NewMockLogger())
	unit := models.RawUnit{Kind: models.SourceImage, Origin: "receipt.png", Image: []byte{0x89, 0x50, 0x4e, 0x47}}

	candidates, err := local.Extract(context.Background(), unit)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// Content arrives as a part list: text prompt plus a base64 data URL.
	parts, ok := gotContent.([]any)
	require.True(t, ok, "image units use content parts, got %T", gotContent)
	require.Len(t, parts, 2)

	imagePart, ok := parts[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "image_url", imagePart["type"])

	urlField, ok := imagePart["image_url"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, urlField["url"], "data:image/png;base64,")
}

func TestLocalDefaults(t *testing.T) {
	local := NewLocal("", "", false, 0, logging.NewMockLogger())
	assert.Equal(t, "http://localhost:1234/v1", local.baseURL)
	assert.Equal(t, "local-model", local.model)
	assert.False(t, local.Multimodal())
	assert.Equal(t, "local-llm", local.Name())
}
