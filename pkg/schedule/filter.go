package schedule

import (
	"regexp"
	"sort"
	"strings"
)

// All is the filter value that selects every team or court.
const All = "all"

// Bye is the opponent and winner shown on synthesized bye rows.
const Bye = "BYE"

var seedSuffix = regexp.MustCompile(`\s*\(#\d+\)$`)

// FilterableTeamName returns the base name of a team for filter lists.
// Bracket placeholders such as "Winner P3", "TBA", "—" and "BYE" are not teams.
func FilterableTeamName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "Winner") {
		return "", false
	}
	switch name {
	case WinnerTBA, WinnerDash, Bye:
		return "", false
	}
	return strings.TrimSpace(seedSuffix.ReplaceAllString(name, "")), true
}

// UniqueTeams lists the distinct base team names, sorted.
func UniqueTeams(matches []Match) []string {
	set := map[string]bool{}
	for _, m := range matches {
		for _, t := range []string{m.Team1, m.Team2} {
			if name, ok := FilterableTeamName(t); ok {
				set[name] = true
			}
		}
	}
	return sortedSet(set)
}

// UniqueCourts lists the distinct non-empty courts, sorted.
func UniqueCourts(matches []Match) []string {
	set := map[string]bool{}
	for _, m := range matches {
		if c := strings.TrimSpace(m.Court); c != "" {
			set[c] = true
		}
	}
	return sortedSet(set)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PlaysIn reports whether the base team name takes part in m.
func (m Match) PlaysIn(team string) bool {
	t1, _ := FilterableTeamName(m.Team1)
	t2, _ := FilterableTeamName(m.Team2)
	return team != "" && (t1 == team || t2 == team)
}

func onCourt(m Match, court string) bool {
	return court == All || strings.TrimSpace(m.Court) == court
}

// FilterSchedule applies a court and team filter and returns the result in
// round order. With a team selected, a bye row is added for every clock round
// the team does not play in.
func FilterSchedule(matches []Match, team, court string) []Match {
	if team == "" {
		team = All
	}
	if court == "" {
		court = All
	}

	var out []Match
	for _, m := range matches {
		if !onCourt(m, court) {
			continue
		}
		if team != All && !m.PlaysIn(team) {
			continue
		}
		out = append(out, m)
	}

	if team != All {
		out = append(out, byeRounds(matches, team, court)...)
	}
	SortMatches(out)
	return out
}

func byeRounds(matches []Match, team, court string) []Match {
	played := map[string]bool{}
	var rounds []string
	seen := map[string]bool{}
	for _, m := range matches {
		if m.RoundTime == "" {
			continue
		}
		if m.PlaysIn(team) {
			played[m.RoundTime] = true
		}
		if !seen[m.RoundTime] {
			seen[m.RoundTime] = true
			rounds = append(rounds, m.RoundTime)
		}
	}
	sort.SliceStable(rounds, func(i, j int) bool {
		return CompareRoundTimes(rounds[i], rounds[j]) < 0
	})

	var out []Match
	for _, r := range rounds {
		if played[r] || strings.HasPrefix(r, PlayoffPrefix) {
			continue
		}
		if court != All && !roundUsesCourt(matches, r, court) {
			continue
		}
		out = append(out, Match{
			RoundTime: r,
			Team1:     team,
			Team2:     Bye,
			Court:     WinnerDash,
			Winner:    Bye,
			IsBye:     true,
		})
	}
	return out
}

func roundUsesCourt(matches []Match, round, court string) bool {
	for _, m := range matches {
		if m.RoundTime == round && strings.TrimSpace(m.Court) == court {
			return true
		}
	}
	return false
}

// FilterAdmin applies the admin view filters. When hidePlayed is set,
// matches with a recorded admin result are left out.
func FilterAdmin(matches []Match, team, court string, hidePlayed bool) []Match {
	if team == "" {
		team = All
	}
	if court == "" {
		court = All
	}
	var out []Match
	for _, m := range matches {
		if !onCourt(m, court) || (team != All && !m.PlaysIn(team)) {
			continue
		}
		if hidePlayed && m.IsPlayed() {
			continue
		}
		out = append(out, m)
	}
	SortMatches(out)
	return out
}

// NextUnplayed returns the index of the first match in sorted order that has
// no official result, or -1.
func NextUnplayed(sorted []Match) int {
	for i, m := range sorted {
		if m.IsBye {
			continue
		}
		if !m.HasOfficialResult() {
			return i
		}
	}
	return -1
}
