package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tendersync/internal/ingest"
	"github.com/sells-group/tendersync/internal/model"
	"github.com/sells-group/tendersync/internal/upload"
)

var (
	syncTenant      string
	syncIntegration string
	syncSheet       string
	syncCharset     string
	syncDelimiter   string
)

var syncCmd = &cobra.Command{
	Use:     "sync <file>",
	Aliases: []string{"ingest"},
	Short:   "Ingest a batch file of opportunities",
	Long:    "Parses a CSV, XLSX, or JSON export of opportunities and runs it through the ingestion pipeline as one sync job.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		if syncTenant == "" {
			return eris.New("--tenant is required")
		}

		ctx := cmd.Context()
		records, err := loadRecords(ctx, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("parsed batch file",
			zap.String("file", args[0]),
			zap.Int("records", len(records)),
		)

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := newPipeline(st).Run(ctx, ingest.Request{
			TenantID:      syncTenant,
			IntegrationID: syncIntegration,
			SyncType:      model.SyncUpload,
			Records:       records,
		})
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Printf("job %s: %s\n", report.JobID, report.Status)
		fmt.Printf("  added:     %d\n", report.Stats.OpportunitiesAdded)
		fmt.Printf("  updated:   %d\n", report.Stats.OpportunitiesUpdated)
		fmt.Printf("  contacts:  %d\n", report.Stats.ContactsFound)
		fmt.Printf("  emails:    %d\n", report.Stats.EmailsExtracted)
		fmt.Printf("  errors:    %d\n", report.Stats.Errors)
		for _, msg := range report.Stats.ErrorMessages {
			fmt.Printf("    - %s\n", msg)
		}

		if !report.Success {
			return eris.New("sync job failed")
		}
		return nil
	},
}

func loadRecords(ctx context.Context, path string) ([]model.OpportunityRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open batch file")
		}
		defer f.Close() //nolint:errcheck

		var delim rune
		if syncDelimiter != "" {
			delim = rune(syncDelimiter[0])
		}
		return upload.ParseCSV(ctx, f, upload.CSVOptions{
			Delimiter: delim,
			Charset:   syncCharset,
			MaxRows:   cfg.Upload.MaxRows,
		})
	case ".xlsx":
		return upload.ParseXLSX(path, upload.XLSXOptions{
			SheetName: syncSheet,
			MaxRows:   cfg.Upload.MaxRows,
		})
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "read batch file")
		}
		var records []model.OpportunityRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, eris.Wrap(err, "parse batch file")
		}
		return records, nil
	default:
		return nil, eris.Errorf("unsupported file type %q, expected .csv, .xlsx, or .json", filepath.Ext(path))
	}
}

func init() {
	syncCmd.Flags().StringVar(&syncTenant, "tenant", "", "tenant ID (required)")
	syncCmd.Flags().StringVar(&syncIntegration, "integration", "", "integration ID")
	syncCmd.Flags().StringVar(&syncSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	syncCmd.Flags().StringVar(&syncCharset, "charset", "", "CSV charset (default UTF-8)")
	syncCmd.Flags().StringVar(&syncDelimiter, "delimiter", "", "CSV delimiter (default ',')")
	rootCmd.AddCommand(syncCmd)
}
