// Package extract turns raw source content into candidate transactions.
// Three providers implement the same one-method contract: a hosted LLM
// (Gemini), a locally hosted model server (LM Studio / Ollama style
// OpenAI-compatible API), and an OCR-plus-heuristics fallback with no
// external dependency. The provider is selected by configuration.
package extract

import (
	"context"
	"fmt"

	"fjacquet/budget-import/internal/config"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

// Provider extracts candidate transactions from one raw unit. "No
// transactions found" is an empty slice, never an error; errors mean the
// provider itself failed (transport down, output unusable after retry).
type Provider interface {
	// Name identifies the provider in provenance and logs.
	Name() string

	// Multimodal reports whether the provider accepts image input
	// directly. Non-multimodal providers receive OCR text instead.
	Multimodal() bool

	// Extract produces candidates from one unit. The context carries the
	// per-call timeout.
	Extract(ctx context.Context, unit models.RawUnit) ([]models.Candidate, error)

	// Close releases provider resources (HTTP clients, API sessions).
	Close() error
}

// New builds the provider selected by configuration. The returned
// provider is scoped to one import invocation; callers own its Close.
func New(cfg *config.Config, log logging.Logger) (Provider, error) {
	if log == nil {
		log = logging.GetLogger()
	}

	switch cfg.Provider {
	case config.ProviderRemoteLLM:
		return NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.TimeoutSeconds, log)
	case config.ProviderLocalLLM:
		return NewLocal(cfg.Local.BaseURL, cfg.Local.Model, cfg.Local.Multimodal, cfg.Local.TimeoutSeconds, log), nil
	case config.ProviderOCR:
		return NewOCR(cfg.OCR.Binary, log), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// extractionPrompt is the shared structured-output prompt. Both LLM
// providers use it for text and image input.
const extractionPrompt = `Extract all financial transactions from the following %s.

For each transaction, extract:
- description: Brief description of the transaction
- amount: Transaction amount (positive number only)
- date: Transaction date (YYYY-MM-DD format, or estimate based on context)
- type: "card" or "cash" (guess based on context if not specified)
- card: Card name or last 4 digits if mentioned (optional)
- category: Transaction category like "Food", "Transport", "Entertainment" etc. (optional)

IMPORTANT: Return ONLY a valid JSON array. No explanations, no markdown, no extra text.

Example format:
[
  {
    "description": "Coffee at Starbucks",
    "amount": 5.50,
    "date": "2025-10-11",
    "type": "card",
    "card": "Visa",
    "category": "Food"
  }
]`

// strictSuffix is appended on the single retry after malformed output.
const strictSuffix = `

Your previous answer was not a parseable JSON array. Respond with NOTHING
except the JSON array itself, starting with [ and ending with ]. Return
[] if there are no transactions.`

func buildPrompt(unit models.RawUnit, strict bool) string {
	context := "document"
	switch unit.Kind {
	case models.SourcePDF:
		context = "bank statement or receipt"
	case models.SourceImage:
		context = "receipt image"
	case models.SourceEmail:
		context = "transaction notification email"
	}

	prompt := fmt.Sprintf(extractionPrompt, context)
	if unit.Text != "" {
		prompt += "\n\nText to analyze:\n" + unit.Text
	}
	prompt += "\n\nJSON array:"
	if strict {
		prompt += strictSuffix
	}
	return prompt
}
