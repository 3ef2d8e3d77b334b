package schedule

import (
	"encoding/json"
	"strings"
)

// Placeholder winner values. Any of these means the match has no result.
const (
	WinnerUnset = ""
	WinnerTBA   = "TBA"
	WinnerDash  = "—"
)

// StandingsEntry is one row of a division's standings, in store order.
type StandingsEntry struct {
	Rank   int     `json:"rank"`
	Team   string  `json:"team"`
	Record string  `json:"record"`
	Points float64 `json:"points"`
}

func (e *StandingsEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Rank = intValue(raw["rank"])
	e.Team = strings.TrimSpace(textValue(raw["team"]))
	e.Record = textValue(raw["record"])
	e.Points = floatValue(raw["points"])
	return nil
}

// HistoryRecord is an immutable entry of a match's admin write log.
type HistoryRecord struct {
	Name             string `json:"name"`
	Winner           string `json:"winner"`
	PlayersRemaining int    `json:"playersRemaining"`
	Notes            string `json:"notes"`
	Date             string `json:"date"`
}

func (h *HistoryRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Name = textValue(raw["name"])
	h.Winner = textValue(raw["winner"])
	h.PlayersRemaining = intValue(raw["playersRemaining"])
	h.Notes = textValue(raw["notes"])
	h.Date = textValue(raw["date"])
	return nil
}

// Match is a schedule entry. It is addressed in the spreadsheet by RowIndex
// and in the realtime tree by FirebaseIndex.
type Match struct {
	Match         string `json:"match"`
	RowIndex      int    `json:"rowIndex,omitempty"`
	FirebaseIndex Key    `json:"firebaseIndex"`

	Team1     string `json:"team1"`
	Team2     string `json:"team2"`
	Court     string `json:"court"`
	RoundTime string `json:"roundTime"`

	Winner           string `json:"winner"`
	PlayersRemaining int    `json:"playersRemaining"`

	AdminName             string `json:"adminName"`
	AdminWinner           string `json:"adminWinner"`
	AdminPlayersRemaining int    `json:"adminPlayersRemaining"`
	Notes                 string `json:"notes"`
	LastUpdated           string `json:"lastUpdated,omitempty"`

	History []HistoryRecord `json:"history,omitempty"`

	// IsBye marks a synthesized row for a round the filtered team sits out.
	IsBye bool `json:"isBye,omitempty"`
}

// UnmarshalJSON accepts the loosely typed rows both stores produce: numbers
// where strings are expected and the other way around, and history either as
// an array or as a push-keyed object.
func (m *Match) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Match{
		Match:                 strings.TrimSpace(textValue(raw["match"])),
		RowIndex:              intValue(raw["rowIndex"]),
		Team1:                 strings.TrimSpace(textValue(raw["team1"])),
		Team2:                 strings.TrimSpace(textValue(raw["team2"])),
		Court:                 strings.TrimSpace(textValue(raw["court"])),
		RoundTime:             strings.TrimSpace(textValue(raw["roundTime"])),
		Winner:                strings.TrimSpace(textValue(raw["winner"])),
		PlayersRemaining:      intValue(raw["playersRemaining"]),
		AdminName:             strings.TrimSpace(textValue(raw["adminName"])),
		AdminWinner:           strings.TrimSpace(textValue(raw["adminWinner"])),
		AdminPlayersRemaining: intValue(raw["adminPlayersRemaining"]),
		Notes:                 strings.TrimSpace(textValue(raw["notes"])),
		LastUpdated:           textValue(raw["lastUpdated"]),
	}
	if k, ok := raw["firebaseIndex"]; ok {
		if err := m.FirebaseIndex.UnmarshalJSON(k); err != nil {
			return err
		}
	}
	if h, ok := raw["history"]; ok {
		m.History = DecodeHistory(h)
	}
	return nil
}

// IsPlaceholder reports whether a winner value means "no result yet".
func IsPlaceholder(winner string) bool {
	switch strings.TrimSpace(winner) {
	case WinnerUnset, WinnerTBA, WinnerDash:
		return true
	}
	return false
}

// NormalizeWinner maps the dash placeholder to an empty winner. Other values
// are kept as entered, including a tie.
func NormalizeWinner(winner string) string {
	winner = strings.TrimSpace(winner)
	if winner == WinnerDash {
		return WinnerUnset
	}
	return winner
}

// HasOfficialResult reports whether the official winner column is filled in.
func (m Match) HasOfficialResult() bool {
	return !IsPlaceholder(m.Winner)
}

// IsPlayed reports whether an admin has recorded a result for the match.
func (m Match) IsPlayed() bool {
	return !IsPlaceholder(m.AdminWinner)
}

// Settings are the per-deployment flags sent along with division data.
type Settings struct {
	IsTieAllowed bool `json:"is_tie_allowed"`
}

// DivisionData is the payload of a full division load.
type DivisionData struct {
	Settings  Settings         `json:"settings"`
	Standings []StandingsEntry `json:"standings"`
	Schedule  []Match          `json:"schedule"`
}
