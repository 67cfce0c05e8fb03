package metadata

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when persisted metadata exists but cannot be decoded.
var ErrCorrupt = errors.New("metadata is corrupt")

type Entry struct {
	Label    string `json:"label" firestore:"label"`
	Selected bool   `json:"selected" firestore:"selected"`
}

// Index maps a filename to its metadata entry.
type Index map[string]Entry

// Labels returns the labels in use, including duplicates and empty strings.
func (idx Index) Labels() []string {
	labels := make([]string, 0, len(idx))
	for _, e := range idx {
		labels = append(labels, e.Label)
	}
	return labels
}

// Store persists the whole Index at once. Update runs load, fn and save
// without another writer interleaving; if fn fails nothing is saved.
type Store interface {
	Load(ctx context.Context) (Index, error)
	Save(ctx context.Context, idx Index) error
	Update(ctx context.Context, fn func(Index) error) error
}
