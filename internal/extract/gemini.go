package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

const geminiConfidence = 0.9

// Gemini is the remote-LLM provider backed by the Google Gemini API.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	log     logging.Logger
}

// NewGemini creates a Gemini provider. The client is scoped to one
// import invocation; callers own Close.
func NewGemini(apiKey, modelName string, timeoutSeconds int, log logging.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set GEMINI_API_KEY)")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   client.GenerativeModel(modelName),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		log:     log,
	}, nil
}

// Name identifies the provider in provenance and logs.
func (g *Gemini) Name() string { return "gemini" }

// Multimodal reports that Gemini accepts image input directly.
func (g *Gemini) Multimodal() bool { return true }

// Extract sends the unit's text or image with the structured-output
// prompt and parses the response. Malformed output gets one stricter
// retry, then the unit is dropped with a malformed-extraction error.
func (g *Gemini) Extract(ctx context.Context, unit models.RawUnit) ([]models.Candidate, error) {
	response, err := g.generate(ctx, unit, false)
	if err != nil {
		return nil, err
	}

	candidates, parseErr := parseCandidates(response, unit, g.Name(), geminiConfidence)
	if parseErr == nil {
		return candidates, nil
	}

	g.log.Warn("Malformed Gemini output, retrying with stricter prompt",
		logging.Field{Key: logging.FieldUnit, Value: unit.Ref()})

	response, err = g.generate(ctx, unit, true)
	if err != nil {
		return nil, err
	}
	candidates, parseErr = parseCandidates(response, unit, g.Name(), geminiConfidence)
	if parseErr != nil {
		return nil, &importerror.MalformedExtractionError{
			Provider: g.Name(),
			Unit:     unit.Ref(),
			Snippet:  snippet(response),
		}
	}
	return candidates, nil
}

func (g *Gemini) generate(ctx context.Context, unit models.RawUnit, strict bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []genai.Part{genai.Text(buildPrompt(unit, strict))}
	if len(unit.Image) > 0 {
		parts = append([]genai.Part{genai.ImageData("png", unit.Image)}, parts...)
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &importerror.ProviderUnavailableError{Provider: g.Name(), Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &importerror.MalformedExtractionError{
			Provider: g.Name(),
			Unit:     unit.Ref(),
			Snippet:  "empty response",
		}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close closes the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
