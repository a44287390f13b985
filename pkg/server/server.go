package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/clearview/reportline/pkg/handlers/reports"
	reportlinemiddleware "github.com/clearview/reportline/pkg/server/middleware"
	"github.com/clearview/reportline/pkg/services/access"
	"github.com/clearview/reportline/pkg/services/delivery"
	"github.com/clearview/reportline/pkg/services/metrics"
	"github.com/clearview/reportline/pkg/services/report"
	"github.com/clearview/reportline/pkg/services/schedule"
	"github.com/clearview/reportline/pkg/store/artifact"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
}

type Dependencies struct {
	Aggregator  metrics.Aggregator
	Resolver    access.Resolver
	ConfigStore *report.ConfigStore
	Builder     *report.Builder
	Manager     *report.Manager
	Scheduler   *schedule.Scheduler
	Artifacts   artifact.Store
	Dispatcher  *delivery.Dispatcher
}

type Config struct {
	Addr            string
	AuthSecret      string
	RateLimit       rate.Limit
	RateBurst       int
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// ConfigureRouter builds the full route tree. Everything under /api/v1
// requires a stakeholder session.
func ConfigureRouter(logger zerolog.Logger, config Config) *chi.Mux {
	deps := config.Dependencies
	h := handlers.NewHandler(
		deps.Aggregator,
		deps.Resolver,
		deps.ConfigStore,
		deps.Builder,
		deps.Manager,
		deps.Scheduler,
		deps.Artifacts,
		deps.Dispatcher,
	)

	limit := config.RateLimit
	if limit == 0 {
		limit = 20
	}
	burst := config.RateBurst
	if burst == 0 {
		burst = 40
	}

	router := chi.NewRouter()

	router.Use(reportlinemiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	router.Use(reportlinemiddleware.RateLimit(limit, burst))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(reportlinemiddleware.Auth(config.AuthSecret))

		r.Get("/reports/{domain}", h.ExportDomainCSV)

		r.Route("/report-configs", func(r chi.Router) {
			r.Post("/", h.CreateConfig)
			r.Get("/", h.ListConfigs)
			r.Get("/{configID}", h.GetConfig)
			r.Patch("/{configID}/sections/{sectionID}", h.ToggleSection)
			r.Post("/{configID}/validate", h.ValidateConfig)
			r.Post("/{configID}/generate", h.GenerateNow)
			r.Post("/{configID}/schedule", h.ScheduleConfig)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/{jobID}", h.GetJob)
			r.Post("/{jobID}/cancel", h.CancelJob)
			r.Get("/{jobID}/artifacts/{format}", h.DownloadArtifact)
			r.Post("/{jobID}/email", h.EmailArtifacts)
		})
	})

	return router
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	router := ConfigureRouter(logger, config)

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
