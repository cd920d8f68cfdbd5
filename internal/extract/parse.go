package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"fjacquet/budget-import/internal/models"
)

// wireTransaction is the schema both LLM providers are prompted to
// return. Amount is a json.Number because models emit it as a bare
// number; it travels on as a raw string until normalization.
type wireTransaction struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Card        string      `json:"card"`
	Category    string      `json:"category"`
}

// parseCandidates extracts the JSON array from an LLM response and maps
// it onto candidates. Models wrap output in markdown fences or prose
// despite instructions, so the array is located structurally rather than
// trusting the response to be bare JSON.
func parseCandidates(response string, unit models.RawUnit, provider string, confidence float64) ([]models.Candidate, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	text = text[start : end+1]

	var wire []wireTransaction
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("unmarshaling transactions: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(wire))
	for _, w := range wire {
		candidates = append(candidates, models.Candidate{
			Description: w.Description,
			RawAmount:   w.Amount.String(),
			RawDate:     w.Date,
			Type:        models.TxnType(w.Type),
			Card:        w.Card,
			Category:    w.Category,
			Provider:    provider,
			Source:      unit.Ref(),
			Confidence:  confidence,
		})
	}
	return candidates, nil
}

// snippet truncates a response for inclusion in malformed-output errors.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
