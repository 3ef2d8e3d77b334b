// Package viewer keeps a client's view of one division current while the
// server pushes new snapshots, and renders the shared countdown.
package viewer

import (
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// View is a tab of the client.
type View string

const (
	ViewStandings View = "standings"
	ViewSchedule  View = "schedule"
	ViewAdmin     View = "admin"
)

// Filters are the user's selections. Empty values mean schedule.All.
type Filters struct {
	Team       string
	Court      string
	AdminTeam  string
	AdminCourt string
}

// State is the client-local copy of a division plus the user's selections.
// It is not safe for concurrent use; the session loop owns it.
type State struct {
	Division   string
	Data       schedule.DivisionData
	Teams      []string
	Courts     []string
	Filters    Filters
	HidePlayed bool
	Active     View

	scroll map[View]int
}

func NewState() *State {
	return &State{
		Filters: Filters{Team: schedule.All, Court: schedule.All, AdminTeam: schedule.All, AdminCourt: schedule.All},
		Active:  ViewSchedule,
		scroll:  map[View]int{},
	}
}

func pick(value string, options []string) string {
	for _, o := range options {
		if o == value {
			return value
		}
	}
	return schedule.All
}

// Apply replaces the division data. Filter selections and scroll offsets
// survive when the refreshed data still has them; a filter whose value is
// gone falls back to schedule.All. Applying the same data twice yields the
// same state.
func (s *State) Apply(division string, data schedule.DivisionData) {
	keep := s.Filters
	scroll := make(map[View]int, len(s.scroll))
	for v, off := range s.scroll {
		scroll[v] = off
	}

	if data.Standings == nil {
		data.Standings = []schedule.StandingsEntry{}
	}
	if data.Schedule == nil {
		data.Schedule = []schedule.Match{}
	}
	s.Division = division
	s.Data = data
	s.Teams = schedule.UniqueTeams(data.Schedule)
	s.Courts = schedule.UniqueCourts(data.Schedule)

	s.Filters = Filters{
		Team:       pick(keep.Team, s.Teams),
		Court:      pick(keep.Court, s.Courts),
		AdminTeam:  pick(keep.AdminTeam, s.Teams),
		AdminCourt: pick(keep.AdminCourt, s.Courts),
	}

	s.scroll = map[View]int{}
	for v, off := range scroll {
		s.SetScroll(v, off)
	}
}

func (s *State) rows(v View) int {
	switch v {
	case ViewStandings:
		return len(s.Data.Standings)
	case ViewAdmin:
		return len(s.AdminSchedule())
	}
	return len(s.PublicSchedule())
}

// SetScroll records the first visible row of a view, clamped to its rows.
func (s *State) SetScroll(v View, offset int) {
	if n := s.rows(v); offset >= n {
		offset = n - 1
	}
	if offset < 0 {
		offset = 0
	}
	s.scroll[v] = offset
}

func (s *State) Scroll(v View) int { return s.scroll[v] }

func (s *State) SetTeam(team string) { s.Filters.Team = pick(team, s.Teams) }
func (s *State) SetCourt(court string) { s.Filters.Court = pick(court, s.Courts) }
func (s *State) SetAdminTeam(team string) { s.Filters.AdminTeam = pick(team, s.Teams) }
func (s *State) SetAdminCourt(court string) { s.Filters.AdminCourt = pick(court, s.Courts) }

// PublicSchedule is the schedule tab: court filter, then team filter with
// bye rows, in round order.
func (s *State) PublicSchedule() []schedule.Match {
	return schedule.FilterSchedule(s.Data.Schedule, s.Filters.Team, s.Filters.Court)
}

// AdminSchedule is the result entry list.
func (s *State) AdminSchedule() []schedule.Match {
	return schedule.FilterAdmin(s.Data.Schedule, s.Filters.AdminTeam, s.Filters.AdminCourt, s.HidePlayed)
}

// NextUnplayedIndex is the highlighted row of PublicSchedule, or -1.
func (s *State) NextUnplayedIndex() int {
	return schedule.NextUnplayed(s.PublicSchedule())
}
