package audit

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSink appends audit events as rows to a Google Sheets spreadsheet.
// Meant for low-volume review trails, not high-frequency telemetry.
type SheetsSink struct {
	service       *sheets.Service
	spreadsheetID string
	sheetRange    string
}

var _ interfaces.AuditSink = &SheetsSink{}

type SheetsOption func(*SheetsSink)

// WithSheetRange overrides the target range. Defaults to the first sheet.
func WithSheetRange(r string) SheetsOption {
	return func(s *SheetsSink) {
		if r != "" {
			s.sheetRange = r
		}
	}
}

func NewSheetsSink(ctx context.Context, spreadsheetID string, opts []SheetsOption, clientOpts ...option.ClientOption) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, goerr.New("spreadsheet ID is required")
	}

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	s := &SheetsSink{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetRange:    "A1",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SheetsSink) Emit(ctx context.Context, event model.AuditEvent) error {
	corpora := make([]string, 0, len(event.Corpora))
	for _, c := range event.Corpora {
		corpora = append(corpora, c.String())
	}

	row := []interface{}{
		event.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
		event.Kind,
		event.OwnerID.String(),
		event.SessionID.String(),
		event.Class.String(),
		strings.Join(corpora, ","),
		event.Role.String(),
		event.ResultLen,
		event.Degraded,
		event.Elapsed.String(),
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetRange, &sheets.ValueRange{
			Values: [][]interface{}{row},
		}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return goerr.Wrap(err, "failed to append audit row",
			goerr.V("spreadsheet_id", s.spreadsheetID))
	}
	return nil
}
