// package server exposes the job registry over HTTP
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// ConversionStore persists and reloads completed conversions.
type ConversionStore interface {
	tasks.ResultStore
	Load(ctx context.Context, key string) ([]models.TrackResult, bool, error)
}

// Dependencies holds everything the handlers need. Registry and Matcher are required.
type Dependencies struct {
	Registry *tasks.Registry
	Matcher  tasks.TrackMatcher   // used by the synchronous convert endpoint
	Source   services.TrackSource // nil disables playlist references
	Store    ConversionStore      // optional
	Profile  tasks.Profile        // default for new jobs
	Logger   *log.Logger

	PollInterval time.Duration // event stream polling
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = shared.DiscardLogger()
	}
	if d.Profile.Name == "" {
		d.Profile = tasks.BackgroundProfile()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = defaultPollInterval
	}
	return d
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	deps = deps.withDefaults()
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(Logger(deps.Logger))
	r.Use(Recovery(deps.Logger))

	r.Get("/api/health", h.health)
	r.Post("/api/convert", h.convert)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", h.createJob)
		r.Get("/", h.listJobs)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getJob)
			r.Delete("/", h.deleteJob)
			r.Get("/results", h.getResults)
			r.Get("/events", h.events)
			r.Post("/pause", h.pauseJob)
			r.Post("/resume", h.resumeJob)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
	return r
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
