package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-import/internal/config"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

func TestNewSelectsProvider(t *testing.T) {
	log := logging.NewMockLogger()

	local, err := New(&config.Config{Provider: config.ProviderLocalLLM}, log)
	require.NoError(t, err)
	assert.Equal(t, "local-llm", local.Name())

	ocr, err := New(&config.Config{Provider: config.ProviderOCR}, log)
	require.NoError(t, err)
	assert.Equal(t, "ocr", ocr.Name())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(&config.Config{Provider: "carrier-pigeon"}, logging.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewRemoteRequiresAPIKey(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderRemoteLLM}
	_, err := New(cfg, logging.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		unit     models.RawUnit
		contains string
	}{
		{"PDF unit", models.RawUnit{Kind: models.SourcePDF, Text: "page text"}, "bank statement or receipt"},
		{"Image unit", models.RawUnit{Kind: models.SourceImage}, "receipt image"},
		{"Email unit", models.RawUnit{Kind: models.SourceEmail, Text: "body"}, "transaction notification email"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prompt := buildPrompt(tc.unit, false)
			assert.Contains(t, prompt, tc.contains)
			assert.Contains(t, prompt, "JSON array")
			if tc.unit.Text != "" {
				assert.Contains(t, prompt, tc.unit.Text)
			}
		})
	}
}

func TestBuildPromptStrict(t *testing.T) {
	unit := models.RawUnit{Kind: models.SourcePDF, Text: "page"}

	relaxed := buildPrompt(unit, false)
	strict := buildPrompt(unit, true)

	assert.NotContains(t, relaxed, "previous answer")
	assert.Contains(t, strict, "previous answer")
}
