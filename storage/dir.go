package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix marks in-flight writes inside a Dir. Such files are never listed.
const TempPrefix = ".incoming-"

// Dir stores objects as regular files in a single local directory.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

// Put writes r to a temp file and renames it over name.
func (d *Dir) Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	p, err := d.path(name)
	if err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(d.root, TempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		return n, err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return n, fmt.Errorf("rename %s: %w", name, err)
	}
	return n, nil
}

func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := d.Stat(ctx, name); err != nil {
		return nil, err
	}
	p, _ := d.path(name)
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return f, err
}

func (d *Dir) Stat(ctx context.Context, name string) (Attrs, error) {
	p, err := d.path(name)
	if err != nil {
		return Attrs{}, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Attrs{}, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return Attrs{}, err
	}
	if !fi.Mode().IsRegular() {
		return Attrs{}, fmt.Errorf("%w: %s is not a regular file", ErrNotExist, name)
	}
	return Attrs{Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (d *Dir) List(ctx context.Context) ([]Attrs, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	list := make([]Attrs, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		a, err := d.Stat(ctx, e.Name())
		if errors.Is(err, ErrNotExist) || errors.Is(err, ErrInvalidName) {
			// directories, entries removed since ReadDir, or names placed
			// out of band that no operation could address
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

func (d *Dir) Delete(ctx context.Context, name string) error {
	if _, err := d.Stat(ctx, name); err != nil {
		return err
	}
	p, _ := d.path(name)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return err
	}
	return nil
}
