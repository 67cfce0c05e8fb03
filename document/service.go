package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/imrenagi/docstore/metadata"
	"github.com/imrenagi/docstore/storage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/imrenagi/docstore/document")

const (
	defaultURLPrefix       = "/uploads/"
	defaultReadConcurrency = 4
)

// errNoChange aborts a metadata update without saving.
var errNoChange = errors.New("no change")

type Options struct {
	Merger          Merger
	URLPrefix       string
	Reserved        []string
	ReadConcurrency int
}

type Option func(*Options)

func WithMerger(m Merger) Option {
	return func(o *Options) {
		o.Merger = m
	}
}

func WithURLPrefix(prefix string) Option {
	return func(o *Options) {
		o.URLPrefix = prefix
	}
}

// WithReservedNames hides names from listings and refuses them as
// document filenames. The metadata sidecar belongs here when it shares
// the documents bucket.
func WithReservedNames(names ...string) Option {
	return func(o *Options) {
		o.Reserved = append(o.Reserved, names...)
	}
}

func WithReadConcurrency(n int) Option {
	return func(o *Options) {
		o.ReadConcurrency = n
	}
}

// Service implements the document operations over a Bucket holding the
// file bytes and a metadata Store holding label and selection state.
type Service struct {
	bucket          storage.Bucket
	meta            metadata.Store
	merger          Merger
	urlPrefix       string
	reserved        []string
	readConcurrency int
}

func NewService(bucket storage.Bucket, meta metadata.Store, opts ...Option) *Service {
	o := Options{
		Merger:          Concat{},
		URLPrefix:       defaultURLPrefix,
		ReadConcurrency: defaultReadConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ReadConcurrency < 1 {
		o.ReadConcurrency = 1
	}
	return &Service{
		bucket:          bucket,
		meta:            meta,
		merger:          o.Merger,
		urlPrefix:       o.URLPrefix,
		reserved:        o.Reserved,
		readConcurrency: o.ReadConcurrency,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) validate(name string) error {
	return ValidateFilename(name, s.reserved...)
}

// Upload stores r under name and replaces its metadata with label and
// selected. Prior content and metadata for name are discarded.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, size int64, label string, selected bool) (n int64, err error) {
	ctx, span := tracer.Start(ctx, "document.Upload", trace.WithAttributes(attribute.String("filename", name)))
	defer func() { endSpan(span, err) }()

	if err := s.validate(name); err != nil {
		return 0, err
	}

	n, err = s.bucket.Put(ctx, name, r, size)
	if err != nil {
		return n, fmt.Errorf("store %s: %w", name, err)
	}

	err = s.meta.Update(ctx, func(idx metadata.Index) error {
		idx[name] = metadata.Entry{Label: label, Selected: selected}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("update metadata for %s: %w", name, err)
	}

	log.Ctx(ctx).Info().
		Str("filename", name).
		Int64("size", n).
		Str("label", label).
		Bool("selected", selected).
		Msg("document uploaded")
	return n, nil
}

// List returns every stored file joined with its metadata, sorted by filename.
func (s *Service) List(ctx context.Context) (docs []Document, err error) {
	ctx, span := tracer.Start(ctx, "document.List")
	defer func() { endSpan(span, err) }()

	idx, err := s.meta.Load(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := s.bucket.List(ctx)
	if err != nil {
		return nil, err
	}

	docs = make([]Document, 0, len(objects))
	for _, o := range objects {
		if slices.Contains(s.reserved, o.Name) {
			continue
		}
		e := idx[o.Name]
		docs = append(docs, Document{
			Filename:   o.Name,
			Size:       o.Size,
			UploadTime: o.ModTime.UTC(),
			URL:        s.urlPrefix + o.Name,
			Label:      e.Label,
			Selected:   e.Selected,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	span.SetAttributes(attribute.Int("documents", len(docs)))
	return docs, nil
}

// Update applies u to the metadata of name, creating the entry if needed.
// The file itself does not have to exist.
func (s *Service) Update(ctx context.Context, name string, u Update) (e metadata.Entry, err error) {
	ctx, span := tracer.Start(ctx, "document.Update", trace.WithAttributes(attribute.String("filename", name)))
	defer func() { endSpan(span, err) }()

	if err := s.validate(name); err != nil {
		return metadata.Entry{}, err
	}

	err = s.meta.Update(ctx, func(idx metadata.Index) error {
		e = idx[name]
		if u.Label != nil {
			e.Label = *u.Label
		}
		if u.Selected != nil {
			e.Selected = *u.Selected
		}
		idx[name] = e
		return nil
	})
	if err != nil {
		return metadata.Entry{}, fmt.Errorf("update metadata for %s: %w", name, err)
	}

	log.Ctx(ctx).Info().
		Str("filename", name).
		Str("label", e.Label).
		Bool("selected", e.Selected).
		Msg("document updated")
	return e, nil
}

// Delete removes the file and then its metadata entry, if any.
func (s *Service) Delete(ctx context.Context, name string) (err error) {
	ctx, span := tracer.Start(ctx, "document.Delete", trace.WithAttributes(attribute.String("filename", name)))
	defer func() { endSpan(span, err) }()

	if err := s.validate(name); err != nil {
		return err
	}

	if err := s.bucket.Delete(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}

	err = s.meta.Update(ctx, func(idx metadata.Index) error {
		if _, ok := idx[name]; !ok {
			return errNoChange
		}
		delete(idx, name)
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return fmt.Errorf("remove metadata for %s: %w", name, err)
	}

	log.Ctx(ctx).Info().Str("filename", name).Msg("document deleted")
	return nil
}

// Labels returns the distinct non-empty labels in ascending order.
func (s *Service) Labels(ctx context.Context) (labels []string, err error) {
	ctx, span := tracer.Start(ctx, "document.Labels")
	defer func() { endSpan(span, err) }()

	idx, err := s.meta.Load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	labels = []string{}
	for _, l := range idx.Labels() {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}

// Consolidate reads names in parallel and merges them in the given order.
// Missing or invalid names become not-found sections.
func (s *Service) Consolidate(ctx context.Context, names []string) (merged string, err error) {
	ctx, span := tracer.Start(ctx, "document.Consolidate", trace.WithAttributes(attribute.Int("files", len(names))))
	defer func() { endSpan(span, err) }()

	sections := make([]Section, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readConcurrency)
	for i, name := range names {
		g.Go(func() error {
			sec, err := s.readSection(gctx, name)
			if err != nil {
				return err
			}
			sections[i] = sec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return s.merger.Merge(ctx, sections)
}

func (s *Service) readSection(ctx context.Context, name string) (Section, error) {
	missing := Section{Filename: name}
	if err := s.validate(name); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("filename", name).Msg("skipping invalid filename")
		return missing, nil
	}

	rc, err := s.bucket.Open(ctx, name)
	if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
		return missing, nil
	}
	if err != nil {
		return Section{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return Section{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Section{Filename: name, Found: true, Content: b}, nil
}

// Open returns the raw content of name for download. Reserved and invalid
// names are reported as ErrInvalidFilename.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, storage.Attrs, error) {
	if err := s.validate(name); err != nil {
		return nil, storage.Attrs{}, err
	}
	attrs, err := s.bucket.Stat(ctx, name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, storage.Attrs{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, storage.Attrs{}, err
	}
	rc, err := s.bucket.Open(ctx, name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, storage.Attrs{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, storage.Attrs{}, err
	}
	return rc, attrs, nil
}
