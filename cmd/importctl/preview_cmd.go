package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/custimport/internal/config"
	"github.com/rpattn/custimport/internal/ingestion"
	"github.com/rpattn/custimport/internal/logging"
	"github.com/rpattn/custimport/internal/repository/sqlite"
	"github.com/rpattn/custimport/internal/session"
)

type previewOutput struct {
	Command    string                  `json:"command"`
	DurationMS int64                   `json:"duration_ms"`
	Result     ingestion.PreviewResult `json:"result"`
}

func newPreviewCmd() *cobra.Command {
	var (
		tenantID   string
		dbPath     string
		configPath string
		sheet      string
		headerRow  int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Parse, map and validate a spreadsheet without writing customers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Log.Level = logLevel
			logger := logging.NewWithOutput(cfg.Log, cmd.ErrOrStderr())

			store, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			service := ingestion.NewService(store, session.NewMemoryStore(cfg.Import.SessionTTL, nil), ingestion.Options{
				MaxUploadBytes: cfg.Import.MaxUploadBytes,
				PreviewRows:    cfg.Import.PreviewRows,
				Vocabularies:   cfg.Vocabularies,
				Vocabulary:     cfg.Matching.Vocabulary(),
				Dedupe:         cfg.Matching.Dedupe(),
			}, logger)

			req := ingestion.PreviewRequest{
				TenantID: tid,
				FileName: filepath.Base(args[0]),
				Payload:  payload,
				Sheet:    sheet,
			}
			if cmd.Flags().Changed("header-row") {
				req.HeaderRow = &headerRow
			}

			start := time.Now()
			result, err := service.Preview(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), previewOutput{
				Command:    "preview",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     result,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant uuid (required)")
	cmd.Flags().StringVar(&dbPath, "db", ":memory:", "sqlite database holding existing customers")
	cmd.Flags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
	cmd.Flags().StringVar(&sheet, "sheet", "", "workbook sheet to read")
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "zero based header row, detected when omitted")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
