package audit

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const submissionsCollection = "Submissions"

// FirestoreLog keeps submissions in a Firestore collection keyed by ID.
type FirestoreLog struct {
	client *firestore.Client
}

func NewFirestoreLog(client *firestore.Client) *FirestoreLog {
	return &FirestoreLog{client: client}
}

func (l *FirestoreLog) Insert(ctx context.Context, r Record) error {
	if _, err := l.client.Collection(submissionsCollection).Doc(r.ID).Set(ctx, r); err != nil {
		return fmt.Errorf("write submission %s: %w", r.ID, err)
	}
	return nil
}

func (l *FirestoreLog) Get(ctx context.Context, id string) (Record, error) {
	doc, err := l.client.Collection(submissionsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("read submission %s: %w", id, err)
	}
	var r Record
	if err := doc.DataTo(&r); err != nil {
		return Record{}, fmt.Errorf(
			"consistency error. Converting %s to submission record failed: %w",
			doc.Ref.ID,
			err,
		)
	}
	return r, nil
}

func (l *FirestoreLog) ListByDivision(ctx context.Context, division string, limit int) ([]Record, error) {
	iter := l.client.Collection(submissionsCollection).
		Where("division", "==", division).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	out := []Record{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list submissions of %s: %w", division, err)
		}
		var r Record
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf(
				"consistency error. Converting %s to submission record failed: %w",
				doc.Ref.ID,
				err,
			)
		}
		out = append(out, r)
	}
	return out, nil
}
