package server

import (
	"context"
	"fmt"
	"io"

	"github.com/imrenagi/docstore/config"
	"github.com/imrenagi/docstore/document"
	"github.com/imrenagi/docstore/metadata"
	"github.com/imrenagi/docstore/storage"
	"github.com/rs/zerolog/log"
)

type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close backend")
		}
	}
}

func newBucket(ctx context.Context, cfg config.Storage) (storage.Bucket, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		d, err := storage.NewDir(cfg.Dir)
		return d, nil, err
	case config.BackendGCS:
		g, err := storage.NewGCS(ctx, cfg.GCS.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	case config.BackendS3:
		s, err := storage.NewS3(ctx, storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
		})
		return s, nil, err
	}
	return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// newMetadataStore also returns the names the store occupies in bucket.
func newMetadataStore(ctx context.Context, cfg config.Metadata, bucket storage.Bucket) (metadata.Store, io.Closer, []string, error) {
	switch cfg.Backend {
	case config.MetadataSidecar:
		return metadata.NewSidecar(bucket, cfg.Sidecar), nil, []string{cfg.Sidecar}, nil
	case config.MetadataFirestore:
		f, err := metadata.NewFirestore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.Collection, cfg.Firestore.Document)
		if err != nil {
			return nil, nil, nil, err
		}
		return f, f, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported metadata backend %q", cfg.Backend)
}

// NewService wires the document service from configuration. The returned
// func releases backend clients.
func NewService(ctx context.Context, cfg config.Config) (*document.Service, func(), error) {
	var cs closers

	bucket, c, err := newBucket(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	if c != nil {
		cs = append(cs, c)
	}

	meta, c, reserved, err := newMetadataStore(ctx, cfg.Metadata, bucket)
	if err != nil {
		cs.Close()
		return nil, nil, fmt.Errorf("metadata: %w", err)
	}
	if c != nil {
		cs = append(cs, c)
	}

	svc := document.NewService(bucket, meta,
		document.WithURLPrefix(cfg.Storage.URLPrefix),
		document.WithReservedNames(reserved...))

	log.Info().
		Str("storage_backend", cfg.Storage.Backend).
		Str("metadata_backend", cfg.Metadata.Backend).
		Msg("document service ready")
	return svc, cs.Close, nil
}
