package sheets

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/xerrors"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/nvbf/gameday-sync/pkg/config"
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// Service reads and writes division tabs of one spreadsheet.
type Service struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	layout        config.SheetLayout
}

// NewService creates a spreadsheet client. Extra options are appended after
// the credentials, which lets tests point it at a local endpoint.
func NewService(ctx context.Context, credentialsJSON, spreadsheetID string, layout config.SheetLayout, opts ...option.ClientOption) (*Service, error) {
	var clientOpts []option.ClientOption
	if credentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	clientOpts = append(clientOpts, option.WithScopes(sheetsv4.SpreadsheetsScope))
	clientOpts = append(clientOpts, opts...)

	srv, err := sheetsv4.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, xerrors.Errorf("create sheets client: %w", err)
	}
	return &Service{srv: srv, spreadsheetID: spreadsheetID, layout: layout}, nil
}

func (s *Service) SpreadsheetID() string { return s.spreadsheetID }

// GetDivisionNames lists the titles of visible tabs.
func (s *Service) GetDivisionNames(ctx context.Context) ([]string, error) {
	resp, err := s.srv.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(title,hidden)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, xerrors.Errorf("get spreadsheet metadata: %w", err)
	}
	names := []string{}
	for _, sh := range resp.Sheets {
		if sh.Properties == nil || sh.Properties.Hidden {
			continue
		}
		names = append(names, sh.Properties.Title)
	}
	return names, nil
}

// GetStandings reads the standings range of a division tab.
func (s *Service) GetStandings(ctx context.Context, sheet string) ([]schedule.StandingsEntry, error) {
	values, err := s.get(ctx, a1(sheet, s.layout.StandingsRange), false)
	if err != nil {
		return nil, xerrors.Errorf("read standings of %s: %w", sheet, err)
	}
	return parseStandingsRows(values), nil
}

// GetSchedule reads every schedule row from the start row to the last
// filled row of the first column.
func (s *Service) GetSchedule(ctx context.Context, sheet string) ([]schedule.Match, error) {
	first := s.layout.ScheduleFirstColumn
	column, err := s.get(ctx, a1(sheet, first+":"+first), false)
	if err != nil {
		return nil, xerrors.Errorf("read schedule length of %s: %w", sheet, err)
	}
	lastRow := len(column)
	start := s.layout.ScheduleStartRow
	if lastRow < start {
		return []schedule.Match{}, nil
	}

	rng := fmt.Sprintf("%s%d:%s%d", first, start, s.layout.ScheduleLastColumn, lastRow)
	values, err := s.get(ctx, a1(sheet, rng), false)
	if err != nil {
		return nil, xerrors.Errorf("read schedule of %s: %w", sheet, err)
	}
	return parseScheduleRows(values, start), nil
}

// GetHistories reads the history cell of each given row.
func (s *Service) GetHistories(ctx context.Context, sheet string, fromRow, toRow int) (map[int][]schedule.HistoryRecord, error) {
	out := map[int][]schedule.HistoryRecord{}
	if toRow < fromRow {
		return out, nil
	}
	col := s.layout.HistoryColumn
	values, err := s.get(ctx, a1(sheet, fmt.Sprintf("%s%d:%s%d", col, fromRow, col, toRow)), true)
	if err != nil {
		return nil, xerrors.Errorf("read history of %s: %w", sheet, err)
	}
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if h := decodeHistoryCell(row[0]); len(h) > 0 {
			out[fromRow+i] = h
		}
	}
	return out, nil
}

// AdminWrite is the admin shadow copy written to one schedule row.
type AdminWrite struct {
	AdminName        string
	Winner           string
	PlayersRemaining int
	Notes            string
	Date             string
}

func (w AdminWrite) record() schedule.HistoryRecord {
	return schedule.HistoryRecord{
		Name:             w.AdminName,
		Winner:           w.Winner,
		PlayersRemaining: w.PlayersRemaining,
		Notes:            w.Notes,
		Date:             w.Date,
	}
}

// SaveAdminResult writes the admin columns of a row and appends a history
// record to its history cell in a single batch update.
func (s *Service) SaveAdminResult(ctx context.Context, sheet string, row int, w AdminWrite) error {
	if sheet == "" || row < 1 {
		return ErrInvalidRow
	}
	historyCell := a1(sheet, fmt.Sprintf("%s%d", s.layout.HistoryColumn, row))
	current, err := s.get(ctx, historyCell, true)
	if err != nil {
		return xerrors.Errorf("read history cell %s: %w", historyCell, err)
	}
	var existing interface{}
	if len(current) > 0 && len(current[0]) > 0 {
		existing = current[0][0]
	}
	history, err := AppendHistory(existing, w.record())
	if err != nil {
		return err
	}

	adminRange := a1(sheet, fmt.Sprintf("%s%d:%s%d", s.layout.AdminFirstColumn, row, s.layout.AdminLastColumn, row))
	req := &sheetsv4.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheetsv4.ValueRange{
			{
				Range:  adminRange,
				Values: [][]interface{}{{w.AdminName, w.Winner, w.PlayersRemaining, w.Notes, w.Date}},
			},
			{
				Range:  historyCell,
				Values: [][]interface{}{{history}},
			},
		},
	}
	if _, err := s.srv.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return xerrors.Errorf("batch update %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, rng string, unformatted bool) ([][]interface{}, error) {
	call := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, rng)
	if unformatted {
		call = call.ValueRenderOption("UNFORMATTED_VALUE")
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// a1 prefixes a range with a quoted tab name.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}
