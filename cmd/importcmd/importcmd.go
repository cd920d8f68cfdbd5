// Package importcmd holds the import subcommands: pdf, image and email.
package importcmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fjacquet/budget-import/cmd/root"
	"fjacquet/budget-import/internal/extract"
	"fjacquet/budget-import/internal/fingerprint"
	"fjacquet/budget-import/internal/importer"
	"fjacquet/budget-import/internal/ledger"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
	"fjacquet/budget-import/internal/reader"
)

// Cmd groups the import subcommands.
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import transactions from a source into the ledger",
}

var pdfCmd = &cobra.Command{
	Use:   "pdf <file-or-directory>",
	Short: "Import transactions from bank statement PDFs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileImport(cmd.Context(), args[0], models.SourcePDF)
	},
}

var imageCmd = &cobra.Command{
	Use:   "image <file-or-directory>",
	Short: "Import transactions from receipt photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileImport(cmd.Context(), args[0], models.SourceImage)
	},
}

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Import transactions from a mailbox scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMailImport(cmd.Context())
	},
}

func init() {
	Cmd.AddCommand(pdfCmd)
	Cmd.AddCommand(imageCmd)
	Cmd.AddCommand(emailCmd)
}

// runFileImport reads units from a file or directory and runs the batch.
func runFileImport(ctx context.Context, path string, source models.SourceKind) error {
	cfg := root.Cfg
	log := root.Log

	provider, err := extract.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			log.WithError(err).Warn("Failed to close provider")
		}
	}()

	files, err := reader.CollectFiles(path, source == models.SourcePDF)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warn("No importable files found",
			logging.Field{Key: logging.FieldFile, Value: path})
		return nil
	}

	var units []models.RawUnit
	var unitErrs []error
	switch source {
	case models.SourcePDF:
		pdfReader := reader.NewPDFReader(log)
		for _, file := range files {
			fileUnits, fileErrs, err := pdfReader.Read(file)
			if err != nil {
				unitErrs = append(unitErrs, err)
				continue
			}
			units = append(units, fileUnits...)
			unitErrs = append(unitErrs, fileErrs...)
		}
	case models.SourceImage:
		imageReader := reader.NewImageReader(providerWantsImages(provider), log)
		for _, file := range files {
			unit, err := imageReader.Read(file)
			if err != nil {
				unitErrs = append(unitErrs, err)
				continue
			}
			units = append(units, unit)
		}
	}

	return runBatch(ctx, provider, source, units, unitErrs)
}

// runMailImport connects to the configured mailbox, scans for
// transaction-likely messages and runs the batch.
func runMailImport(ctx context.Context) error {
	cfg := root.Cfg
	log := root.Log

	if cfg.Mail.Server == "" || cfg.Mail.Username == "" {
		return fmt.Errorf("mail.server and mail.username must be configured for email import")
	}

	provider, err := extract.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			log.WithError(err).Warn("Failed to close provider")
		}
	}()

	mailReader := reader.NewMailReader(cfg.Mail.Folder, cfg.Mail.Keywords, cfg.Mail.Senders, log)
	if err := mailReader.Connect(cfg.Mail.Server, cfg.Mail.Username, cfg.Mail.Password); err != nil {
		return err
	}
	defer func() {
		if err := mailReader.Close(); err != nil {
			log.WithError(err).Warn("Failed to close mail session")
		}
	}()

	since := time.Now().AddDate(0, 0, -cfg.Mail.Days)
	units, unitErrs, err := mailReader.Scan(since)
	if err != nil {
		return err
	}

	return runBatch(ctx, provider, models.SourceEmail, units, unitErrs)
}

// runBatch wires the coordinator against the configured ledger store and
// reports the result.
func runBatch(ctx context.Context, provider extract.Provider, source models.SourceKind, units []models.RawUnit, unitErrs []error) error {
	cfg := root.Cfg
	log := root.Log

	store, err := ledger.OpenStore(cfg.Ledger.File)
	if err != nil {
		return err
	}

	opts := fingerprint.Options{
		WindowDays: cfg.Dedup.WindowDays,
		Threshold:  cfg.Dedup.Similarity,
	}
	coordinator := importer.NewCoordinator(provider, store, store, opts, cfg.Dedup.MinConfidence, log)
	result := coordinator.Run(ctx, source, units, unitErrs)

	reportResult(result, log)
	return nil
}

// reportResult prints the batch summary and the review list.
func reportResult(result *models.ImportResult, log logging.Logger) {
	log.Info("Import summary",
		logging.Field{Key: logging.FieldSource, Value: string(result.Source)},
		logging.Field{Key: "extracted", Value: result.Extracted},
		logging.Field{Key: "imported", Value: result.Imported},
		logging.Field{Key: "duplicates", Value: result.Duplicates},
		logging.Field{Key: "normalization_failed", Value: result.NormalizationFailed},
		logging.Field{Key: "errors", Value: result.Errors})

	for _, warning := range result.Warnings {
		log.Warn(warning)
	}

	for _, rej := range result.Rejected {
		fields := []logging.Field{
			{Key: logging.FieldReason, Value: string(rej.Reason)},
			{Key: "description", Value: rej.Candidate.Description},
			{Key: "amount", Value: rej.Candidate.RawAmount},
			{Key: "date", Value: rej.Candidate.RawDate},
			{Key: logging.FieldSource, Value: rej.Candidate.Source},
		}
		if rej.MatchedLedgerID != "" {
			fields = append(fields, logging.Field{Key: "matched_ledger_id", Value: rej.MatchedLedgerID})
		}
		log.Info("Rejected candidate for review", fields...)
	}
}

// providerWantsImages reports whether the image reader should letterbox
// for direct multimodal input.
func providerWantsImages(p extract.Provider) bool {
	return p.Multimodal()
}
