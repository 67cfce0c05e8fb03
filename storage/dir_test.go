package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/imrenagi/docstore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	ctx := context.Background()

	t.Run("Put then Stat reports the written size", func(t *testing.T) {
		d, err := NewDir(t.TempDir())
		require.NoError(t, err)

		n, err := d.Put(ctx, "a.txt", strings.NewReader("hello"), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		a, err := d.Stat(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", a.Name)
		assert.Equal(t, int64(5), a.Size)
		assert.False(t, a.ModTime.IsZero())
	})

	t.Run("Put overwrites existing content", func(t *testing.T) {
		d, err := NewDir(t.TempDir())
		require.NoError(t, err)

		_, err = d.Put(ctx, "a.txt", strings.NewReader("first"), -1)
		require.NoError(t, err)
		_, err = d.Put(ctx, "a.txt", strings.NewReader("2nd"), -1)
		require.NoError(t, err)

		rc, err := d.Open(ctx, "a.txt")
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "2nd", string(b))
	})

	t.Run("Zero byte objects are stored", func(t *testing.T) {
		d, err := NewDir(t.TempDir())
		require.NoError(t, err)

		_, err = d.Put(ctx, "empty", strings.NewReader(""), 0)
		require.NoError(t, err)
		a, err := d.Stat(ctx, "empty")
		require.NoError(t, err)
		assert.Equal(t, int64(0), a.Size)
	})

	t.Run("List returns regular files only and skips temp files", func(t *testing.T) {
		root := t.TempDir()
		d, err := NewDir(root)
		require.NoError(t, err)

		_, err = d.Put(ctx, "a.txt", strings.NewReader("a"), 1)
		require.NoError(t, err)
		require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, TempPrefix+"123"), []byte("x"), 0644))

		list, err := d.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a.txt", list[0].Name)
	})

	t.Run("List skips files created out of band with unaddressable names", func(t *testing.T) {
		root := t.TempDir()
		d, err := NewDir(root)
		require.NoError(t, err)

		_, err = d.Put(ctx, "a.txt", strings.NewReader("a"), 1)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, `win\name.txt`), []byte("x"), 0644))

		list, err := d.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a.txt", list[0].Name)
	})

	t.Run("Missing objects and directories report ErrNotExist", func(t *testing.T) {
		root := t.TempDir()
		d, err := NewDir(root)
		require.NoError(t, err)
		require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

		_, err = d.Stat(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotExist)
		_, err = d.Stat(ctx, "sub")
		assert.ErrorIs(t, err, ErrNotExist)
		_, err = d.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotExist)
		assert.ErrorIs(t, d.Delete(ctx, "missing"), ErrNotExist)
		assert.ErrorIs(t, d.Delete(ctx, "sub"), ErrNotExist)
	})

	t.Run("Delete removes the file", func(t *testing.T) {
		d, err := NewDir(t.TempDir())
		require.NoError(t, err)

		_, err = d.Put(ctx, "a.txt", strings.NewReader("a"), 1)
		require.NoError(t, err)
		require.NoError(t, d.Delete(ctx, "a.txt"))
		_, err = d.Stat(ctx, "a.txt")
		assert.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("Names that escape the directory are rejected", func(t *testing.T) {
		d, err := NewDir(t.TempDir())
		require.NoError(t, err)

		for _, name := range []string{"", ".", "..", "../x", "a/b", `a\b`, "a\x00b"} {
			_, err := d.Put(ctx, name, strings.NewReader("x"), 1)
			assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
			_, err = d.Stat(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
		}
	})
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{raw: "minio:9000", endpoint: "minio:9000"},
		{raw: "http://minio:9000", endpoint: "minio:9000"},
		{raw: "https://s3.example.com", endpoint: "s3.example.com", secure: true},
		{raw: "  ", wantErr: true},
		{raw: "http://minio:9000/bucket", wantErr: true},
	}
	for _, tt := range tests {
		endpoint, secure, err := NormaliseEndpoint(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.endpoint, endpoint)
		assert.Equal(t, tt.secure, secure)
	}
}
