package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Source reads the legacy collections.
type Source interface {
	Requests(ctx context.Context) ([]RequestDoc, error)
	Messages(ctx context.Context, requestID string) ([]MessageDoc, error)
	Notifications(ctx context.Context) ([]NotificationDoc, error)
	Claims(ctx context.Context) ([]ClaimDoc, error)
}

// FirestoreSource reads documents from a Firestore project.
type FirestoreSource struct {
	client *firestore.Client
}

// NewFirestoreSource connects to the project. An empty credentials file falls back to
// application default credentials.
func NewFirestoreSource(ctx context.Context, projectID, credentialsFile string) (*FirestoreSource, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("importer: project id is required")
	}
	var opts []option.ClientOption
	if file := strings.TrimSpace(credentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("importer: init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("importer: init firestore: %w", err)
	}
	return &FirestoreSource{client: client}, nil
}

// Close releases the Firestore client.
func (s *FirestoreSource) Close() error {
	return s.client.Close()
}

func (s *FirestoreSource) Requests(ctx context.Context) ([]RequestDoc, error) {
	return readAll(ctx, s.client.Collection(CollectionRequests).Documents(ctx), func(id string, doc *RequestDoc) {
		doc.ID = id
	})
}

func (s *FirestoreSource) Messages(ctx context.Context, requestID string) ([]MessageDoc, error) {
	iter := s.client.Collection(CollectionRequests).Doc(requestID).
		Collection(CollectionMessages).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	return readAll(ctx, iter, func(id string, doc *MessageDoc) {
		doc.ID = id
		doc.RequestID = requestID
	})
}

func (s *FirestoreSource) Notifications(ctx context.Context) ([]NotificationDoc, error) {
	return readAll(ctx, s.client.Collection(CollectionNotifications).Documents(ctx), func(id string, doc *NotificationDoc) {
		doc.ID = id
	})
}

func (s *FirestoreSource) Claims(ctx context.Context) ([]ClaimDoc, error) {
	return readAll(ctx, s.client.Collection(CollectionClaims).Documents(ctx), func(id string, doc *ClaimDoc) {
		doc.ID = id
	})
}

func readAll[T any](ctx context.Context, iter *firestore.DocumentIterator, setKeys func(id string, doc *T)) ([]T, error) {
	defer iter.Stop()

	var docs []T
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("importer: read documents: %w", err)
		}
		var doc T
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("importer: decode %s: %w", snap.Ref.Path, err)
		}
		setKeys(snap.Ref.ID, &doc)
		docs = append(docs, doc)
	}
}
