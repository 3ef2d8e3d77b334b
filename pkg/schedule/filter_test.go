package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Match {
	return []Match{
		{Match: "1", Team1: "Ducks (#1)", Team2: "Geese", Court: "1", RoundTime: "9:00 AM", Winner: "Ducks (#1)", AdminWinner: "Ducks (#1)"},
		{Match: "2", Team1: "Swans", Team2: "Herons", Court: "2", RoundTime: "9:00 AM", Winner: "TBA"},
		{Match: "3", Team1: "Ducks (#1)", Team2: "Swans", Court: "2", RoundTime: "10:00 AM"},
		{Match: "4", Team1: "Geese", Team2: "Herons", Court: "1", RoundTime: "11:00 AM", AdminWinner: "—"},
		{Match: "5", Team1: "Winner P1", Team2: "TBA", Court: "1", RoundTime: "P2.Final"},
	}
}

func TestFilterableTeamName(t *testing.T) {
	name, ok := FilterableTeamName(" 🦆 The Mighty Duckers (#1) ")
	assert.True(t, ok)
	assert.Equal(t, "🦆 The Mighty Duckers", name)

	for _, placeholder := range []string{"Winner P3", "TBA", "—", "BYE", "", "  "} {
		_, ok := FilterableTeamName(placeholder)
		assert.False(t, ok, placeholder)
	}
}

func TestUniqueTeamsAndCourts(t *testing.T) {
	assert.Equal(t, []string{"Ducks", "Geese", "Herons", "Swans"}, UniqueTeams(sample()))
	assert.Equal(t, []string{"1", "2"}, UniqueCourts(sample()))
}

func TestPlayedStatusUsesAdminWinner(t *testing.T) {
	s := sample()
	assert.True(t, s[0].IsPlayed())
	assert.False(t, s[1].IsPlayed())
	assert.False(t, s[3].IsPlayed())

	tie := Match{AdminWinner: "tie"}
	assert.True(t, tie.IsPlayed())
}

func TestFilterScheduleAddsByeRounds(t *testing.T) {
	got := FilterSchedule(sample(), "Ducks", All)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Match)
	assert.Equal(t, "3", got[1].Match)
	assert.True(t, got[2].IsBye)
	assert.Equal(t, "11:00 AM", got[2].RoundTime)
	assert.Equal(t, Bye, got[2].Team2)
}

func TestFilterScheduleByCourt(t *testing.T) {
	got := FilterSchedule(sample(), All, "2")
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Match)
	assert.Equal(t, "3", got[1].Match)
}

func TestFilterScheduleByeRespectsCourt(t *testing.T) {
	// 11:00 AM only uses court 1, so no bye row on court 2
	got := FilterSchedule(sample(), "Ducks", "2")
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Match)
}

func TestFilterAdminHidePlayed(t *testing.T) {
	got := FilterAdmin(sample(), All, All, true)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.Match)
	}
	assert.Equal(t, []string{"2", "3", "4", "5"}, ids)
	assert.Len(t, FilterAdmin(sample(), All, All, false), 5)
}

func TestNextUnplayed(t *testing.T) {
	s := sample()
	SortMatches(s)
	assert.Equal(t, 1, NextUnplayed(s))

	done := []Match{{Winner: "A"}, {Winner: "B"}}
	assert.Equal(t, -1, NextUnplayed(done))
}

func TestNormalizeWinner(t *testing.T) {
	assert.Equal(t, "", NormalizeWinner("—"))
	assert.Equal(t, "", NormalizeWinner("  "))
	assert.Equal(t, "Tie", NormalizeWinner(" Tie "))
	assert.Equal(t, "TBA", NormalizeWinner("TBA"))
}
