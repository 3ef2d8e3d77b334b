package audit

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFirestoreFields(t *testing.T) {
	typ := reflect.TypeOf(Record{})
	fields := map[string]string{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		fields[f.Name] = f.Tag.Get("firestore")
		assert.Equal(t, f.Tag.Get("json"), f.Tag.Get("firestore"), f.Name)
	}
	assert.Equal(t, map[string]string{
		"ID":               "id",
		"Division":         "division",
		"RowIndex":         "rowIndex",
		"FirebaseIndex":    "firebaseIndex",
		"Name":             "name",
		"Winner":           "winner",
		"PlayersRemaining": "playersRemaining",
		"Notes":            "notes",
		"CreatedAt":        "createdAt",
		"FirebaseOK":       "firebaseOk",
		"SheetsOK":         "sheetsOk",
		"SheetsSkipped":    "sheetsSkipped",
	}, fields)
	assert.Equal(t, "Submissions", submissionsCollection)
}

func TestFirestoreLog(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := firestore.NewClient(ctx, "demo-gameday-sync")
	require.NoError(t, err)
	defer client.Close()
	l := NewFirestoreLog(client)

	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	r := sampleRecord(id)
	r.Division = "Div " + id
	require.NoError(t, l.Insert(ctx, r))

	older := sampleRecord(id + "-old")
	older.Division = r.Division
	older.CreatedAt = r.CreatedAt.Add(-time.Hour)
	require.NoError(t, l.Insert(ctx, older))

	got, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r.Name, got.Name)
	assert.Equal(t, r.SheetsSkipped, got.SheetsSkipped)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

	snap, err := client.Collection("Submissions").Doc(id).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Al", snap.Data()["name"])
	assert.Equal(t, r.Division, snap.Data()["division"])

	list, err := l.ListByDivision(ctx, r.Division, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id, list[0].ID)

	_, err = l.Get(ctx, id+"-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
