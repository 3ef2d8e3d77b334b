package rtdb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/dodgeball/divisions/Div A/schedule/3",
		joinPath("dodgeball", matchPath("Div A", schedule.IndexKey(3))...))
	assert.Equal(t, "/dodgeball/timer", joinPath("dodgeball", "timer"))
	assert.Equal(t, "/timer", joinPath("", "timer"))
}

func TestValidKeys(t *testing.T) {
	assert.NoError(t, validKeys("Div A", schedule.IndexKey(0)))
	assert.NoError(t, validKeys("Div A", schedule.StringKey("-Nabc")))
	assert.ErrorIs(t, validKeys("", schedule.IndexKey(0)), ErrInvalidKey)
	assert.ErrorIs(t, validKeys("Div A", schedule.Key{}), ErrInvalidKey)
	assert.ErrorIs(t, validKeys("Div A", schedule.StringKey("a/b")), ErrInvalidKey)
	assert.ErrorIs(t, validKeys("Div.A", schedule.IndexKey(1)), ErrInvalidKey)
}

func TestShadowUpdateFields(t *testing.T) {
	f := ShadowUpdate{AdminName: "Al", AdminWinner: "Ducks", AdminPlayersRemaining: 2, Notes: "n", LastUpdated: "d"}.fields()
	assert.Equal(t, map[string]interface{}{
		"adminName":             "Al",
		"adminWinner":           "Ducks",
		"adminPlayersRemaining": 2,
		"notes":                 "n",
		"lastUpdated":           "d",
	}, f)
}

func TestDivisionNames(t *testing.T) {
	raw := map[string]json.RawMessage{
		"Div B": json.RawMessage(`{}`),
		"Div A": json.RawMessage(`{"schedule":[]}`),
		"Gone":  json.RawMessage(`null`),
	}
	assert.Equal(t, []string{"Div A", "Div B"}, divisionNames(raw))
}

func TestStampedTimerUsesServerTimestamp(t *testing.T) {
	s := countdown.Defaults()
	s.Running = true
	s.StartTime = 1_700_000_000_000
	s.CurrentRound = "9:00 AM"

	m, err := stampedTimer(s)
	assert.NoError(t, err)
	assert.Equal(t, serverTimestamp, m["startTime"])
	assert.Equal(t, true, m["running"])
	assert.Equal(t, float64(300), m["duration"])
	assert.Equal(t, "9:00 AM", m["currentRound"])
}
