package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/imrenagi/docstore/api/documents"
	"github.com/imrenagi/docstore/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const gracefulShutdownPeriod = 30 * time.Second

type Opts struct {
	Config config.Config
}

func New(opts Opts) Server {
	s := Server{
		opts: opts,
	}
	return s
}

type Server struct {
	opts Opts
}

// Run serves the document API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.opts.Config
	log.Info().Msg("starting server")

	telemetryShutdownFn, err := initTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdownFn(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry providers")
		}
	}()

	svc, closeBackends, err := NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	ctrl, err := documents.NewController(svc, documents.WithMaxUploadSize(cfg.Server.MaxUploadBytes))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: NewHTTPHandler(ctrl, cfg.Storage.URLPrefix),
		// ReadTimeout covers the whole request including the multipart body.
		ReadTimeout: 5 * time.Minute,
		// WriteTimeout is the maximum duration before timing out writes of the response.
		WriteTimeout: 5 * time.Minute,
		// ReadHeaderTimeout is necessary here to prevent slowloris attacks.
		// https://www.cloudflare.com/learning/ddos/ddos-attack-tools/slowloris/
		ReadHeaderTimeout: 5 * time.Second,
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
		IdleTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Starting http server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server gracefully")
			return err
		}
		log.Warn().Msg("http server gracefully stopped")
		return nil
	})
	return g.Wait()
}

// NewHTTPHandler routes the document API. Stored files are served below
// urlPrefix.
func NewHTTPHandler(ctrl *documents.Controller, urlPrefix string) http.Handler {
	mux := mux.NewRouter()
	mux.Use(
		otelhttp.NewMiddleware("docstore"),
		LogInterceptor)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", otelhttp.WithRouteTag("/", ctrl.Root())).Methods(http.MethodGet)
	mux.Handle("/upload", otelhttp.WithRouteTag("/upload", ctrl.Upload())).Methods(http.MethodPost)
	mux.Handle("/documents", otelhttp.WithRouteTag("/documents", ctrl.List())).Methods(http.MethodGet)
	mux.Handle("/documents/{filename}", otelhttp.WithRouteTag("/documents/{filename}", ctrl.Update())).Methods(http.MethodPatch)
	mux.Handle("/documents/{filename}", otelhttp.WithRouteTag("/documents/{filename}", ctrl.Delete())).Methods(http.MethodDelete)
	mux.Handle("/labels", otelhttp.WithRouteTag("/labels", ctrl.Labels())).Methods(http.MethodGet)
	mux.Handle("/consolidate", otelhttp.WithRouteTag("/consolidate", ctrl.Consolidate())).Methods(http.MethodPost)
	mux.PathPrefix(urlPrefix).
		Handler(otelhttp.WithRouteTag(urlPrefix+"{filename}", ctrl.Files(urlPrefix))).
		Methods(http.MethodGet, http.MethodHead)

	return newCORS().Handler(mux)
}
