package config

import (
	"os"
	"regexp"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// SheetLayout locates divisions' data inside a spreadsheet tab.
type SheetLayout struct {
	// StandingsRange holds rank, team, record and points columns.
	StandingsRange string `yaml:"standingsRange"`
	// ScheduleStartRow is the first 1-based schedule row.
	ScheduleStartRow int `yaml:"scheduleStartRow"`
	// ScheduleFirstColumn to ScheduleLastColumn hold match, team1, team2,
	// court, roundTime, winner, playersRemaining, adminName, adminWinner,
	// adminPlayersRemaining, notes and the last admin write time.
	ScheduleFirstColumn string `yaml:"scheduleFirstColumn"`
	ScheduleLastColumn  string `yaml:"scheduleLastColumn"`
	// AdminFirstColumn to AdminLastColumn receive adminName, winner,
	// playersRemaining, notes and the write timestamp.
	AdminFirstColumn string `yaml:"adminFirstColumn"`
	AdminLastColumn  string `yaml:"adminLastColumn"`
	// HistoryColumn holds the JSON history array.
	HistoryColumn string `yaml:"historyColumn"`
}

func DefaultLayout() SheetLayout {
	return SheetLayout{
		StandingsRange:      "A2:D20",
		ScheduleStartRow:    74,
		ScheduleFirstColumn: "A",
		ScheduleLastColumn:  "L",
		AdminFirstColumn:    "H",
		AdminLastColumn:     "L",
		HistoryColumn:       "M",
	}
}

var columnName = regexp.MustCompile(`^[A-Z]{1,3}$`)

func (l SheetLayout) Validate() error {
	if l.ScheduleStartRow < 1 {
		return xerrors.Errorf("schedule start row %d must be at least 1", l.ScheduleStartRow)
	}
	if l.StandingsRange == "" {
		return xerrors.Errorf("standings range is empty")
	}
	for _, col := range []string{l.ScheduleFirstColumn, l.ScheduleLastColumn, l.AdminFirstColumn, l.AdminLastColumn, l.HistoryColumn} {
		if !columnName.MatchString(col) {
			return xerrors.Errorf("invalid column %q in sheet layout", col)
		}
	}
	return nil
}

// LoadLayout reads a YAML layout file. Missing keys keep their defaults.
func LoadLayout(path string) (SheetLayout, error) {
	layout := DefaultLayout()
	b, err := os.ReadFile(path)
	if err != nil {
		return layout, xerrors.Errorf("read sheet layout: %w", err)
	}
	if err := yaml.Unmarshal(b, &layout); err != nil {
		return layout, xerrors.Errorf("parse sheet layout: %w", err)
	}
	return layout, layout.Validate()
}
