package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/imrenagi/docstore/document"
	"github.com/imrenagi/docstore/metadata"
	"github.com/imrenagi/docstore/storage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/imrenagi/docstore/api/documents")

const (
	defaultMaxUploadSize = 32 << 20 //32MB
	maxFormMemory        = 8 << 20
	maxJSONBodySize      = 1 << 20
)

// Service is the document store the controller exposes over HTTP.
type Service interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, label string, selected bool) (int64, error)
	List(ctx context.Context) ([]document.Document, error)
	Update(ctx context.Context, name string, u document.Update) (metadata.Entry, error)
	Delete(ctx context.Context, name string) error
	Labels(ctx context.Context) ([]string, error)
	Consolidate(ctx context.Context, names []string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, storage.Attrs, error)
}

type Options struct {
	MaxUploadSize int64
	Message       string
}

type Option func(*Options)

func WithMaxUploadSize(size int64) Option {
	return func(o *Options) {
		o.MaxUploadSize = size
	}
}

func WithMessage(msg string) Option {
	return func(o *Options) {
		o.Message = msg
	}
}

type Controller struct {
	svc           Service
	maxUploadSize int64
	message       string

	uploaded     metric.Int64Counter
	uploadSize   metric.Int64Histogram
	deleted      metric.Int64Counter
	consolidated metric.Int64Counter
}

func NewController(svc Service, opts ...Option) (*Controller, error) {
	o := Options{
		MaxUploadSize: defaultMaxUploadSize,
		Message:       "Document store is running.",
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		svc:           svc,
		maxUploadSize: o.MaxUploadSize,
		message:       o.Message,
	}

	var err error
	if c.uploaded, err = meter.Int64Counter("docstore.documents.uploaded",
		metric.WithDescription("Number of uploaded documents")); err != nil {
		return nil, err
	}
	if c.uploadSize, err = meter.Int64Histogram("docstore.upload.size",
		metric.WithDescription("Size of uploaded documents"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if c.deleted, err = meter.Int64Counter("docstore.documents.deleted",
		metric.WithDescription("Number of deleted documents")); err != nil {
		return nil, err
	}
	if c.consolidated, err = meter.Int64Counter("docstore.documents.consolidated",
		metric.WithDescription("Number of consolidate requests")); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": c.message})
	}
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

func (c *Controller) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		logger.Debug().Str("content_type", r.Header.Get("Content-Type")).Msg("Request Content Type")

		r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadSize)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			logger.Debug().Err(err).Msg("Error Parsing the Form")
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", maxErr.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, handler, err := r.FormFile("file")
		if err != nil {
			logger.Debug().Err(err).Msg("Error Retrieving the File")
			writeError(w, http.StatusBadRequest, errors.New("missing file"))
			return
		}
		defer file.Close()

		selected := false
		if v := r.FormValue("selected"); v != "" {
			selected, err = strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid selected value %q", v))
				return
			}
		}
		label := r.FormValue("label")

		n, err := c.svc.Upload(r.Context(), handler.Filename, file, handler.Size, label, selected)
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		c.uploaded.Add(r.Context(), 1)
		c.uploadSize.Record(r.Context(), n)

		writeJSON(w, http.StatusOK, uploadResponse{Filename: handler.Filename, Status: "uploaded"})
	}
}

func (c *Controller) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := c.svc.List(r.Context())
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

type updateResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Label    string `json:"label"`
}

func (c *Controller) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]

		var u document.Update
		if err := decodeJSON(w, r, &u); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		e, err := c.svc.Update(r.Context(), filename, u)
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updateResponse{Status: "updated", Filename: filename, Label: e.Label})
	}
}

type deleteResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

func (c *Controller) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]
		if err := c.svc.Delete(r.Context(), filename); err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		c.deleted.Add(r.Context(), 1)
		writeJSON(w, http.StatusOK, deleteResponse{Status: "deleted", Filename: filename})
	}
}

func (c *Controller) Labels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := c.svc.Labels(r.Context())
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, labels)
	}
}

type consolidateResponse struct {
	Consolidated string `json:"consolidated"`
}

func (c *Controller) Consolidate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var names []string
		if err := decodeJSON(w, r, &names); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		merged, err := c.svc.Consolidate(r.Context(), names)
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		c.consolidated.Add(r.Context(), 1)
		writeJSON(w, http.StatusOK, consolidateResponse{Consolidated: merged})
	}
}

// Files serves raw document bytes below prefix.
func (c *Controller) Files(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)

		rc, attrs, err := c.svc.Open(r.Context(), name)
		if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrInvalidFilename) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			c.writeServiceError(w, r, err)
			return
		}
		defer rc.Close()

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, name, attrs.ModTime, rs)
			return
		}

		ctype := mime.TypeByExtension(path.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Content-Length", strconv.FormatInt(attrs.Size, 10))
		if !attrs.ModTime.IsZero() {
			w.Header().Set("Last-Modified", attrs.ModTime.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, rc); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Str("filename", name).Msg("error streaming file")
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (c *Controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		writeJSON(w, http.StatusNotFound, cError{Message: "File not found"})
	case errors.Is(err, document.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, err)
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

type cError struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, cError{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
