package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/imrenagi/docstore/storage"
)

// Sidecar keeps the Index as a single JSON object stored next to the
// documents. The mutex serializes writers within one process only.
type Sidecar struct {
	mu     sync.Mutex
	bucket storage.Bucket
	name   string
}

func NewSidecar(bucket storage.Bucket, name string) *Sidecar {
	return &Sidecar{
		bucket: bucket,
		name:   name,
	}
}

func (s *Sidecar) Load(ctx context.Context) (Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Sidecar) Save(ctx context.Context, idx Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, idx)
}

func (s *Sidecar) Update(ctx context.Context, fn func(Index) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return s.save(ctx, idx)
}

func (s *Sidecar) load(ctx context.Context) (Index, error) {
	rc, err := s.bucket.Open(ctx, s.name)
	if errors.Is(err, storage.ErrNotExist) {
		return Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	}

	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.name, err)
	}
	if idx == nil {
		idx = Index{}
	}
	return idx, nil
}

func (s *Sidecar) save(ctx context.Context, idx Index) error {
	if idx == nil {
		idx = Index{}
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.name, err)
	}
	if _, err := s.bucket.Put(ctx, s.name, bytes.NewReader(b), int64(len(b))); err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}
