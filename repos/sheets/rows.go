package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

var ErrInvalidRow = errors.New("invalid sheetName/rowIndex")

// Schedule column offsets from the first schedule column.
const (
	colMatch = iota
	colTeam1
	colTeam2
	colCourt
	colRoundTime
	colWinner
	colPlayersRemaining
	colAdminName
	colAdminWinner
	colAdminPlayersRemaining
	colNotes
	colLastUpdated
)

func get(row []interface{}, idx int) string {
	if idx < len(row) && row[idx] != nil {
		return strings.TrimSpace(fmt.Sprint(row[idx]))
	}
	return ""
}

func getInt(row []interface{}, idx int) int {
	v := get(row, idx)
	if v == "" {
		return 0
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

func getFloat(row []interface{}, idx int) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(get(row, idx), "%"), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseStandingsRows(values [][]interface{}) []schedule.StandingsEntry {
	out := []schedule.StandingsEntry{}
	for _, row := range values {
		team := get(row, 1)
		if team == "" {
			continue
		}
		out = append(out, schedule.StandingsEntry{
			Rank:   getInt(row, 0),
			Team:   team,
			Record: get(row, 2),
			Points: getFloat(row, 3),
		})
	}
	return out
}

// parseScheduleRows maps schedule rows starting at startRow. Rows without
// either team are skipped; the realtime index is the position among the
// rows kept.
func parseScheduleRows(values [][]interface{}, startRow int) []schedule.Match {
	out := []schedule.Match{}
	for i, row := range values {
		team1, team2 := get(row, colTeam1), get(row, colTeam2)
		if team1 == "" && team2 == "" {
			continue
		}
		out = append(out, schedule.Match{
			Match:                 get(row, colMatch),
			RowIndex:              startRow + i,
			FirebaseIndex:         schedule.IndexKey(len(out)),
			Team1:                 team1,
			Team2:                 team2,
			Court:                 get(row, colCourt),
			RoundTime:             get(row, colRoundTime),
			Winner:                get(row, colWinner),
			PlayersRemaining:      getInt(row, colPlayersRemaining),
			AdminName:             get(row, colAdminName),
			AdminWinner:           get(row, colAdminWinner),
			AdminPlayersRemaining: getInt(row, colAdminPlayersRemaining),
			Notes:                 get(row, colNotes),
			LastUpdated:           get(row, colLastUpdated),
		})
	}
	return out
}

// existingHistory returns the raw records of a history cell. Anything that
// is not a JSON array counts as an empty history.
func existingHistory(cell interface{}) []json.RawMessage {
	s, ok := cell.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}

func decodeHistoryCell(cell interface{}) []schedule.HistoryRecord {
	s, ok := cell.(string)
	if !ok {
		return nil
	}
	raw := json.RawMessage(strings.TrimSpace(s))
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	return schedule.DecodeHistory(raw)
}

// AppendHistory appends rec to the history held in cell and returns the new
// cell value. Existing records are carried over without being re-decoded.
func AppendHistory(cell interface{}, rec schedule.HistoryRecord) (string, error) {
	items := existingHistory(cell)
	b, err := json.Marshal(rec)
	if err != nil {
		return "", xerrors.Errorf("encode history record: %w", err)
	}
	items = append(items, b)
	out, err := json.Marshal(items)
	if err != nil {
		return "", xerrors.Errorf("encode history: %w", err)
	}
	return string(out), nil
}
