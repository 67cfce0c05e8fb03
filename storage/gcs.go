package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCS stores objects at the top level of a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCS uses application default credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
	}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func objectName(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

func (g *GCS) Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	name, err := objectName(name)
	if err != nil {
		return 0, err
	}
	objW := g.bucket.Object(name).NewWriter(ctx)
	n, err := io.Copy(objW, r)
	if err != nil {
		objW.Close()
		return n, fmt.Errorf("write gs://%s/%s: %w", g.bucket.BucketName(), name, err)
	}
	if err := objW.Close(); err != nil {
		return n, fmt.Errorf("close gs://%s/%s: %w", g.bucket.BucketName(), name, err)
	}
	return n, nil
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := objectName(name)
	if err != nil {
		return nil, err
	}
	rd, err := g.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return rd, err
}

func (g *GCS) Stat(ctx context.Context, name string) (Attrs, error) {
	name, err := objectName(name)
	if err != nil {
		return Attrs{}, err
	}
	oa, err := g.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return Attrs{}, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{Name: oa.Name, Size: oa.Size, ModTime: oa.Updated}, nil
}

func (g *GCS) List(ctx context.Context) ([]Attrs, error) {
	var list []Attrs
	it := g.bucket.Objects(ctx, &gcs.Query{Delimiter: "/"})
	for {
		oa, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s: %w", g.bucket.BucketName(), err)
		}
		// synthetic prefix entries stand for "directories"
		if oa.Prefix != "" {
			continue
		}
		list = append(list, Attrs{Name: oa.Name, Size: oa.Size, ModTime: oa.Updated})
	}
	return list, nil
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	name, err := objectName(name)
	if err != nil {
		return err
	}
	err = g.bucket.Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return err
}
