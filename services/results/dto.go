package results

import (
	"encoding/json"
	"strings"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// MatchRef locates a match in both stores.
type MatchRef struct {
	SheetName     string       `json:"sheetName"`
	RowIndex      int          `json:"rowIndex,omitempty"`
	FirebaseIndex schedule.Key `json:"firebaseIndex"`
}

// Patch is the admin entered result.
type Patch struct {
	AdminName        string `json:"adminName"`
	Winner           string `json:"winner"`
	PlayersRemaining int    `json:"playersRemaining"`
	Notes            string `json:"notes"`
}

// MatchData is the matchData object of a save request: the identifiers and
// the patch side by side, with the same loose typing as stored rows.
type MatchData struct {
	MatchRef
	Patch
}

func (d *MatchData) UnmarshalJSON(data []byte) error {
	var m schedule.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var named struct {
		SheetName string `json:"sheetName"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	*d = MatchData{
		MatchRef: MatchRef{
			SheetName:     strings.TrimSpace(named.SheetName),
			RowIndex:      m.RowIndex,
			FirebaseIndex: m.FirebaseIndex,
		},
		Patch: Patch{
			AdminName:        m.AdminName,
			Winner:           m.Winner,
			PlayersRemaining: m.PlayersRemaining,
			Notes:            m.Notes,
		},
	}
	return nil
}

// SaveRequest is the body of POST /saveMatchResult.
type SaveRequest struct {
	AuthToken string    `json:"authToken"`
	MatchData MatchData `json:"matchData"`
}

// DestinationResult is the outcome of the write to one store.
type DestinationResult struct {
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (r DestinationResult) failed() bool {
	return !r.Success && !r.Skipped
}

// Outcome reports every destination of one save.
type Outcome struct {
	Success    bool              `json:"success"`
	Partial    bool              `json:"partial,omitempty"`
	Error      string            `json:"error,omitempty"`
	Firebase   DestinationResult `json:"firebase"`
	Sheets     DestinationResult `json:"sheets"`
	Submission string            `json:"submission,omitempty"`
	Receipt    string            `json:"receipt,omitempty"`
}
