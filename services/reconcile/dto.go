package reconcile

import (
	"time"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// Side names a backing store.
type Side string

const (
	SideNone   Side = ""
	SideSheets Side = "sheets"
	SideTree   Side = "firebase"
)

// Shadow is the admin copy of a match result as one store holds it.
type Shadow struct {
	AdminName             string `json:"adminName"`
	AdminWinner           string `json:"adminWinner"`
	AdminPlayersRemaining int    `json:"adminPlayersRemaining"`
	Notes                 string `json:"notes"`
}

func shadowOf(m schedule.Match) Shadow {
	return Shadow{
		AdminName:             m.AdminName,
		AdminWinner:           schedule.NormalizeWinner(m.AdminWinner),
		AdminPlayersRemaining: m.AdminPlayersRemaining,
		Notes:                 m.Notes,
	}
}

// Divergence is one match whose admin copy differs between the stores. A nil
// side means the store has no such match.
type Divergence struct {
	Division      string       `json:"division"`
	Match         string       `json:"match"`
	RowIndex      int          `json:"rowIndex,omitempty"`
	FirebaseIndex schedule.Key `json:"firebaseIndex"`
	Sheet         *Shadow      `json:"sheet"`
	Tree          *Shadow      `json:"firebase"`

	// Newest is the store holding the most recent history record, or
	// SideNone when that cannot be told.
	Newest     Side      `json:"newest"`
	NewestDate time.Time `json:"newestDate,omitempty"`

	Repaired bool    `json:"repaired"`
	Error    *string `json:"error,omitempty"`
}

// DivisionReport is the outcome of checking one division.
type DivisionReport struct {
	Division    string       `json:"division"`
	Checked     int          `json:"checked"`
	Divergences []Divergence `json:"divergences"`
	Error       *string      `json:"error,omitempty"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Repair     bool             `json:"repair"`
	Checked    int              `json:"checked"`
	Diverged   int              `json:"diverged"`
	Repaired   int              `json:"repaired"`
	Divisions  []DivisionReport `json:"divisions"`
}
