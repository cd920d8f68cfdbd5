package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

// OCR confidence is the lowest of the three providers: regex heuristics
// over recognized text miss context an LLM would catch.
const ocrConfidence = 0.4

// OCR is the no-external-dependency fallback provider. Image units go
// through the tesseract command line tool; text units (PDF pages, email
// bodies) are parsed directly. Candidates are assembled with regex and
// positional heuristics.
type OCR struct {
	binary string
	log    logging.Logger

	// runOCR is swappable for tests, same pattern as the teacher's
	// mockable text extraction.
	runOCR func(ctx context.Context, binary string, image []byte) (string, error)
}

// NewOCR creates the OCR provider. binary names the tesseract executable.
func NewOCR(binary string, log logging.Logger) *OCR {
	if binary == "" {
		binary = "tesseract"
	}
	return &OCR{binary: binary, log: log, runOCR: runTesseract}
}

// Name identifies the provider in provenance and logs.
func (o *OCR) Name() string { return "ocr" }

// Multimodal is false: images must be OCR'd to text first.
func (o *OCR) Multimodal() bool { return false }

// Extract obtains text for the unit and applies line heuristics.
func (o *OCR) Extract(ctx context.Context, unit models.RawUnit) ([]models.Candidate, error) {
	text := unit.Text
	if text == "" && len(unit.Image) > 0 {
		recognized, err := o.runOCR(ctx, o.binary, unit.Image)
		if err != nil {
			return nil, &importerror.ProviderUnavailableError{Provider: o.Name(), Err: err}
		}
		text = recognized
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	candidates := o.parseText(text, unit)
	o.log.Debug("OCR heuristics finished",
		logging.Field{Key: logging.FieldUnit, Value: unit.Ref()},
		logging.Field{Key: logging.FieldCount, Value: len(candidates)})
	return candidates, nil
}

// Close is a no-op; the provider holds no connections.
func (o *OCR) Close() error { return nil }

var (
	// A money value with optional symbol and separators, at least one
	// decimal place group: 5.50, 1'234.56, $23.10, 1.234,56
	ocrAmountRe = regexp.MustCompile(`[€$£]?\s?\d{1,3}(?:[.,'\s]\d{3})*[.,]\d{2}\b`)

	// Dates the statement layouts commonly print.
	ocrDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})\b`)

	// Lines that carry an amount but are not themselves transactions.
	ocrSkipRe = regexp.MustCompile(`(?i)\b(subtotal|balance|total due|statement|page \d|carried forward|opening|closing)\b`)

	// A receipt's grand-total line, used when no dated rows exist.
	ocrTotalRe = regexp.MustCompile(`(?i)\b(total|amount due|grand total)\b`)

	ocrWordRe = regexp.MustCompile(`\p{L}{3}`)
)

// parseText assembles candidates from recognized text. Statement pages
// yield one candidate per dated row; receipts without dated rows yield a
// single candidate from the total line with the merchant heuristic
// (first non-numeric line) as description. Rows split by a page boundary
// have no amount on this page and are dropped here; the other fragment
// fails the same test on the next page.
func (o *OCR) parseText(text string, unit models.RawUnit) []models.Candidate {
	lines := strings.Split(text, "\n")

	docDate := ""
	if m := ocrDateRe.FindString(text); m != "" {
		docDate = m
	}

	var candidates []models.Candidate
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || ocrSkipRe.MatchString(line) {
			continue
		}

		date := ocrDateRe.FindString(line)
		if date == "" {
			continue // not a dated row; possibly a receipt item line
		}

		// Strip the date before searching for the amount so a bare
		// timestamp line cannot read as "14.02" francs.
		rest := strings.Replace(line, date, "", 1)
		amount := ocrAmountRe.FindString(rest)
		if amount == "" {
			continue
		}

		desc := strings.TrimSpace(strings.Replace(rest, amount, "", 1))
		if desc == "" {
			continue
		}

		candidates = append(candidates, models.Candidate{
			Description: desc,
			RawAmount:   strings.TrimSpace(amount),
			RawDate:     date,
			Type:        models.TypeCard,
			Provider:    o.Name(),
			Source:      unit.Ref(),
			Confidence:  ocrConfidence,
		})
	}

	if len(candidates) > 0 {
		return candidates
	}

	// Receipt shape: one purchase, total at the bottom, merchant on top.
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !ocrTotalRe.MatchString(line) {
			continue
		}
		amount := ocrAmountRe.FindString(line)
		if amount == "" {
			continue
		}
		return []models.Candidate{{
			Description: merchantHeuristic(lines),
			RawAmount:   strings.TrimSpace(amount),
			RawDate:     docDate,
			Type:        models.TypeCard,
			Provider:    o.Name(),
			Source:      unit.Ref(),
			Confidence:  ocrConfidence,
		}}
	}

	return nil
}

// merchantHeuristic picks the first line that looks like a name rather
// than a number, address or date. Receipts print the merchant on top.
func merchantHeuristic(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ocrAmountRe.MatchString(line) || ocrDateRe.MatchString(line) {
			continue
		}
		if !ocrWordRe.MatchString(line) {
			continue
		}
		return line
	}
	return "Unknown"
}

// runTesseract writes the image to a temp file and invokes tesseract,
// mirroring how the PDF text path shells out to its extraction tool.
func runTesseract(ctx context.Context, binary string, image []byte) (string, error) {
	tempFile, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary image file: %w", err)
	}
	defer func() {
		_ = os.Remove(tempFile.Name())
	}()

	if _, err := tempFile.Write(image); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("failed to write temporary image file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary image file: %w", err)
	}

	// "-" sends the recognized text to stdout.
	cmd := exec.CommandContext(ctx, binary, tempFile.Name(), "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("error running %s: %w", binary, err)
	}
	return string(output), nil
}
