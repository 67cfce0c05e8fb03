package metadata

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore keeps the whole Index in one document. Update runs in a
// transaction, so writers in different processes are serialized as well.
type Firestore struct {
	client *firestore.Client
	doc    *firestore.DocumentRef
}

func NewFirestore(ctx context.Context, projectID, collection, doc string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{
		client: client,
		doc:    client.Collection(collection).Doc(doc),
	}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func decodeSnapshot(snap *firestore.DocumentSnapshot, err error) (Index, error) {
	if status.Code(err) == codes.NotFound {
		return Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata document: %w", err)
	}
	var idx Index
	if err := snap.DataTo(&idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, snap.Ref.Path, err)
	}
	if idx == nil {
		idx = Index{}
	}
	return idx, nil
}

func (f *Firestore) Load(ctx context.Context) (Index, error) {
	return decodeSnapshot(f.doc.Get(ctx))
}

func (f *Firestore) Save(ctx context.Context, idx Index) error {
	if idx == nil {
		idx = Index{}
	}
	if _, err := f.doc.Set(ctx, idx); err != nil {
		return fmt.Errorf("set metadata document: %w", err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, fn func(Index) error) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		idx, err := decodeSnapshot(tx.Get(f.doc))
		if err != nil {
			return err
		}
		if err := fn(idx); err != nil {
			return err
		}
		return tx.Set(f.doc, idx)
	})
}
