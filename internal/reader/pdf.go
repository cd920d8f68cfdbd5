// Package reader produces RawUnits from the supported sources: PDF
// files (one unit per page), image files (one unit per photo) and IMAP
// mailboxes (one unit per matching message). A single unreadable unit is
// reported and skipped; it never aborts the batch.
package reader

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

// PDFReader yields one RawUnit per page of a statement PDF, preserving
// page order. Pages carry extracted text; a table row split across a
// page boundary is the extractor's problem, not the reader's.
type PDFReader struct {
	log logging.Logger
}

// NewPDFReader creates a PDF reader.
func NewPDFReader(log logging.Logger) *PDFReader {
	if log == nil {
		log = logging.GetLogger()
	}
	return &PDFReader{log: log}
}

// Read opens the PDF and extracts text page by page. Per-page failures
// are returned as ReaderErrors alongside the successful units; only a
// file that cannot be opened at all fails the whole call.
func (r *PDFReader) Read(path string) ([]models.RawUnit, []error, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			r.log.WithError(err).Warn("Failed to close PDF document",
				logging.Field{Key: logging.FieldFile, Value: path})
		}
	}()

	now := time.Now().UTC()
	var units []models.RawUnit
	var unitErrs []error

	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			unitErrs = append(unitErrs, &importerror.ReaderError{
				Source: string(models.SourcePDF),
				Unit:   fmt.Sprintf("%s#%d", path, page+1),
				Err:    err,
			})
			continue
		}
		if strings.TrimSpace(text) == "" {
			r.log.Debug("Skipping page without text",
				logging.Field{Key: logging.FieldFile, Value: path},
				logging.Field{Key: "page", Value: page + 1})
			continue
		}

		units = append(units, models.RawUnit{
			Kind:       models.SourcePDF,
			Origin:     path,
			Index:      page,
			Text:       text,
			CapturedAt: now,
		})
	}

	r.log.Info("Read PDF",
		logging.Field{Key: logging.FieldFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: len(units)})
	return units, unitErrs, nil
}
