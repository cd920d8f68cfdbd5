package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

const localConfidence = 0.75

// Local is the local-LLM provider. It speaks the OpenAI-compatible chat
// API that LM Studio and Ollama expose, over plain HTTP with a bounded
// timeout. When the configured model declares multimodal capability,
// image units are sent directly as base64 data URLs, bypassing OCR.
type Local struct {
	baseURL    string
	model      string
	multimodal bool
	client     *http.Client
	log        logging.Logger
}

// NewLocal creates a Local provider against an OpenAI-compatible server.
func NewLocal(baseURL, model string, multimodal bool, timeoutSeconds int, log logging.Logger) *Local {
	if baseURL == "" {
		baseURL = "http://localhost:1234/v1"
	}
	if model == "" {
		model = "local-model"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120 // local vision models can be slow
	}

	return &Local{
		baseURL:    baseURL,
		model:      model,
		multimodal: multimodal,
		client:     &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		log:        log,
	}
}

// Name identifies the provider in provenance and logs.
func (l *Local) Name() string { return "local-llm" }

// Multimodal reports whether the configured model takes image input.
func (l *Local) Multimodal() bool { return l.multimodal }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or content parts for images
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the unit to the local model server and parses the
// response, retrying once with a stricter prompt on malformed output.
func (l *Local) Extract(ctx context.Context, unit models.RawUnit) ([]models.Candidate, error) {
	response, err := l.chat(ctx, unit, false)
	if err != nil {
		return nil, err
	}

	candidates, parseErr := parseCandidates(response, unit, l.Name(), localConfidence)
	if parseErr == nil {
		return candidates, nil
	}

	l.log.Warn("Malformed local model output, retrying with stricter prompt",
		logging.Field{Key: logging.FieldUnit, Value: unit.Ref()})

	response, err = l.chat(ctx, unit, true)
	if err != nil {
		return nil, err
	}
	candidates, parseErr = parseCandidates(response, unit, l.Name(), localConfidence)
	if parseErr != nil {
		return nil, &importerror.MalformedExtractionError{
			Provider: l.Name(),
			Unit:     unit.Ref(),
			Snippet:  snippet(response),
		}
	}
	return candidates, nil
}

func (l *Local) chat(ctx context.Context, unit models.RawUnit, strict bool) (string, error) {
	prompt := buildPrompt(unit, strict)

	var content any = prompt
	if len(unit.Image) > 0 {
		imageBase64 := base64.StdEncoding.EncodeToString(unit.Image)
		content = []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:image/png;base64," + imageBase64,
			}},
		}
	}

	reqBody := chatRequest{
		Model:       l.model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Temperature: 0.1, // low temperature for consistent extraction
		MaxTokens:   4096,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := l.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &importerror.ProviderUnavailableError{Provider: l.Name(), Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			l.log.WithError(err).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &importerror.ProviderUnavailableError{
			Provider: l.Name(),
			Err:      fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &importerror.ProviderUnavailableError{
			Provider: l.Name(),
			Err:      fmt.Errorf("decoding response: %w", err),
		}
	}
	if len(chatResp.Choices) == 0 {
		return "", &importerror.MalformedExtractionError{
			Provider: l.Name(),
			Unit:     unit.Ref(),
			Snippet:  "no choices in response",
		}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Close is a no-op for the HTTP client.
func (l *Local) Close() error { return nil }
