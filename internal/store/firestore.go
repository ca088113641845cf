package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	chatsCollection    = "chats"
	analysesCollection = "documentAnalysis"
	statsCollection    = "stats"
)

// FirestoreStore keeps interactions in the collections used by the web client:
// chats, documentAnalysis and the stats/global counter document.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// RecordInteraction writes the interaction and increments stats/global in a
// single batch.
func (s *FirestoreStore) RecordInteraction(ctx context.Context, rec *Interaction) error {
	collection := chatsCollection
	if rec.Kind == KindDocument {
		collection = analysesCollection
	}

	doc := s.client.Collection(collection).NewDoc()
	rec.ID = doc.ID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	batch := s.client.Batch()
	batch.Create(doc, rec)
	batch.Set(s.client.Collection(statsCollection).Doc(globalStatsID), map[string]interface{}{
		"totalConsultas": firestore.Increment(1),
		"lastUpdated":    firestore.ServerTimestamp,
	}, firestore.MergeAll)

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit interaction batch: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Stats(ctx context.Context) (*UsageStats, error) {
	snap, err := s.client.Collection(statsCollection).Doc(globalStatsID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &UsageStats{}, nil
		}
		return nil, fmt.Errorf("failed to read usage stats: %w", err)
	}

	var stats UsageStats
	if err := snap.DataTo(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode usage stats: %w", err)
	}
	return &stats, nil
}
