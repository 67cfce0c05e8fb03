package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// S3 stores objects in an S3-compatible bucket through the MinIO client.
type S3 struct {
	client *minio.Client
	bucket string
}

// NormaliseEndpoint accepts "host:port" or "http(s)://host:port".
func NormaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint")
	}
	if u.Path != "" && u.Path != "/" {
		return "", false, fmt.Errorf("endpoint must not contain a path")
	}
	return u.Host, u.Scheme == "https", nil
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	endpoint, secure, err := NormaliseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", opts.Bucket)
	}
	return &S3{client: client, bucket: opts.Bucket}, nil
}

func (s *S3) notExist(err error, name string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return err
}

func (s *S3) Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	name, err := objectName(name)
	if err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("put s3://%s/%s: %w", s.bucket, name, err)
	}
	return info.Size, nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := objectName(name)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.notExist(err, name)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.notExist(err, name)
	}
	return obj, nil
}

func (s *S3) Stat(ctx context.Context, name string) (Attrs, error) {
	name, err := objectName(name)
	if err != nil {
		return Attrs{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return Attrs{}, s.notExist(err, name)
	}
	return Attrs{Name: info.Key, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *S3) List(ctx context.Context) ([]Attrs, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var list []Attrs
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list s3://%s: %w", s.bucket, info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		list = append(list, Attrs{Name: info.Key, Size: info.Size, ModTime: info.LastModified})
	}
	return list, nil
}

func (s *S3) Delete(ctx context.Context, name string) error {
	// RemoveObject succeeds on missing keys, so check first.
	if _, err := s.Stat(ctx, name); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove s3://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}
