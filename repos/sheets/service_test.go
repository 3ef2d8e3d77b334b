package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/nvbf/gameday-sync/pkg/config"
)

const testSpreadsheet = "sid"

type fakeSheets struct {
	mu      sync.Mutex
	values  map[string][][]interface{}
	batches []sheetsv4.BatchUpdateValuesRequest
	render  map[string]string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	valuesPrefix := "/v4/spreadsheets/" + testSpreadsheet + "/values/"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/"+testSpreadsheet:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sheets": []map[string]interface{}{
				{"properties": map[string]interface{}{"title": "Division A"}},
				{"properties": map[string]interface{}{"title": "Config", "hidden": true}},
				{"properties": map[string]interface{}{"title": "Division B"}},
			},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, valuesPrefix):
		rng := strings.TrimPrefix(r.URL.Path, valuesPrefix)
		f.render[rng] = r.URL.Query().Get("valueRenderOption")
		json.NewEncoder(w).Encode(map[string]interface{}{"range": rng, "values": f.values[rng]})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/values:batchUpdate"):
		var req sheetsv4.BatchUpdateValuesRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.batches = append(f.batches, req)
		json.NewEncoder(w).Encode(map[string]interface{}{"spreadsheetId": testSpreadsheet})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestService(t *testing.T, f *fakeSheets) *Service {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	layout := config.DefaultLayout()
	layout.ScheduleStartRow = 3
	s, err := NewService(context.Background(), "", testSpreadsheet, layout,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestGetDivisionNames(t *testing.T) {
	s := newTestService(t, &fakeSheets{render: map[string]string{}})
	names, err := s.GetDivisionNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Division A", "Division B"}, names)
}

func TestGetSchedule(t *testing.T) {
	f := &fakeSheets{
		render: map[string]string{},
		values: map[string][][]interface{}{
			"'Division A'!A:A": {{"hdr"}, {""}, {"M1"}, {"M2"}},
			"'Division A'!A3:K4": {
				{"M1", "Ducks", "Geese", "1", "9:00 AM"},
				{"M2", "Swans", "Herons", "2", "9:00 AM", "Swans", "2"},
			},
		},
	}
	s := newTestService(t, f)

	matches, err := s.GetSchedule(context.Background(), "Division A")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 3, matches[0].RowIndex)
	assert.Equal(t, 4, matches[1].RowIndex)
	assert.Equal(t, 2, matches[1].PlayersRemaining)
}

func TestGetScheduleShortSheet(t *testing.T) {
	f := &fakeSheets{
		render: map[string]string{},
		values: map[string][][]interface{}{"'Division A'!A:A": {{"hdr"}}},
	}
	matches, err := newTestService(t, f).GetSchedule(context.Background(), "Division A")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveAdminResult(t *testing.T) {
	f := &fakeSheets{
		render: map[string]string{},
		values: map[string][][]interface{}{
			"'Division A'!M7": {{`[{"name":"Al","winner":"A","playersRemaining":1,"notes":"","date":"d0"}]`}},
		},
	}
	s := newTestService(t, f)

	err := s.SaveAdminResult(context.Background(), "Division A", 7, AdminWrite{
		AdminName: "Bo", Winner: "B", PlayersRemaining: 2, Notes: "n", Date: "d1",
	})
	require.NoError(t, err)

	assert.Equal(t, "UNFORMATTED_VALUE", f.render["'Division A'!M7"])
	require.Len(t, f.batches, 1)
	batch := f.batches[0]
	assert.Equal(t, "RAW", batch.ValueInputOption)
	require.Len(t, batch.Data, 2)
	assert.Equal(t, "'Division A'!H7:L7", batch.Data[0].Range)
	assert.Equal(t, []interface{}{"Bo", "B", float64(2), "n", "d1"}, batch.Data[0].Values[0])
	assert.Equal(t, "'Division A'!M7", batch.Data[1].Range)

	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(batch.Data[1].Values[0][0].(string)), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "Al", history[0]["name"])
	assert.Equal(t, "Bo", history[1]["name"])
}

func TestSaveAdminResultRejectsMissingRow(t *testing.T) {
	s := newTestService(t, &fakeSheets{render: map[string]string{}})
	assert.ErrorIs(t, s.SaveAdminResult(context.Background(), "Division A", 0, AdminWrite{}), ErrInvalidRow)
}

func TestGetHistories(t *testing.T) {
	f := &fakeSheets{
		render: map[string]string{},
		values: map[string][][]interface{}{
			"'Division A'!M3:M5": {
				{`[{"name":"Al","date":"d0"}]`},
				{},
				{"garbage"},
			},
		},
	}
	got, err := newTestService(t, f).GetHistories(context.Background(), "Division A", 3, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Al", got[3][0].Name)
}
