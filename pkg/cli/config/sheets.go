package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/service/audit"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Sheets holds CLI flags for the Google Sheets audit sink
type Sheets struct {
	spreadsheetID   string
	sheetRange      string
	credentialsFile string
}

// Flags returns CLI flags for Sheets audit configuration
func (s *Sheets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "audit-spreadsheet-id",
			Usage:       "Google Sheets spreadsheet ID for the audit trail (empty disables the sink)",
			Sources:     cli.EnvVars("MNEMOSYNE_AUDIT_SPREADSHEET_ID"),
			Destination: &s.spreadsheetID,
		},
		&cli.StringFlag{
			Name:        "audit-sheet-range",
			Usage:       "Target range within the audit spreadsheet",
			Sources:     cli.EnvVars("MNEMOSYNE_AUDIT_SHEET_RANGE"),
			Destination: &s.sheetRange,
		},
		&cli.StringFlag{
			Name:        "audit-credentials-file",
			Usage:       "Service account credentials file for the Sheets API (omit for application default credentials)",
			Sources:     cli.EnvVars("MNEMOSYNE_AUDIT_CREDENTIALS_FILE"),
			Destination: &s.credentialsFile,
		},
	}
}

// Configure creates the Sheets audit sink. Returns nil when no
// spreadsheet is configured.
func (s *Sheets) Configure(ctx context.Context) (*audit.SheetsSink, error) {
	if s.spreadsheetID == "" {
		return nil, nil
	}

	var clientOpts []option.ClientOption
	if s.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentialsFile))
	}

	sink, err := audit.NewSheetsSink(ctx, s.spreadsheetID,
		[]audit.SheetsOption{audit.WithSheetRange(s.sheetRange)},
		clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets audit sink")
	}

	logging.Default().Info("Google Sheets audit sink enabled", "spreadsheet_id", s.spreadsheetID)
	return sink, nil
}
