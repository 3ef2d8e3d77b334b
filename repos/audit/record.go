package audit

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("submission not found")

// Record is one admin result submission and how each store took it.
type Record struct {
	ID               string    `firestore:"id" json:"id"`
	Division         string    `firestore:"division" json:"division"`
	RowIndex         int       `firestore:"rowIndex" json:"rowIndex"`
	FirebaseIndex    string    `firestore:"firebaseIndex" json:"firebaseIndex"`
	Name             string    `firestore:"name" json:"name"`
	Winner           string    `firestore:"winner" json:"winner"`
	PlayersRemaining int       `firestore:"playersRemaining" json:"playersRemaining"`
	Notes            string    `firestore:"notes" json:"notes"`
	CreatedAt        time.Time `firestore:"createdAt" json:"createdAt"`
	FirebaseOK       bool      `firestore:"firebaseOk" json:"firebaseOk"`
	SheetsOK         bool      `firestore:"sheetsOk" json:"sheetsOk"`
	SheetsSkipped    bool      `firestore:"sheetsSkipped" json:"sheetsSkipped"`
}

// Log stores submission records.
type Log interface {
	Insert(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	ListByDivision(ctx context.Context, division string, limit int) ([]Record, error)
}

// Noop discards every record.
type Noop struct{}

func (Noop) Insert(context.Context, Record) error { return nil }

func (Noop) Get(context.Context, string) (Record, error) { return Record{}, ErrNotFound }

func (Noop) ListByDivision(context.Context, string, int) ([]Record, error) { return []Record{}, nil }
