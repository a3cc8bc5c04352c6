// Package server exposes intake and admin operations over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/intake"
	"github.com/Skryldev/doc-intake/login"
	"github.com/Skryldev/doc-intake/records"
)

// Submitter stores one uploaded document.
type Submitter interface {
	Submit(ctx context.Context, req intake.Request) (*intake.Result, error)
}

// Repository is the admin view of the record table.
type Repository interface {
	List(ctx context.Context) ([]records.Submission, error)
	BatchUpdate(ctx context.Context, ids []int, u records.Update) error
	BatchUpdateByRecordID(ctx context.Context, recordIDs []string, u records.Update) error
}

// LoginExchanger turns a LINE Login code into a profile.
type LoginExchanger interface {
	Exchange(ctx context.Context, code string) (*login.Profile, error)
}

// Deps are the collaborators behind the routes.  Login, Metrics and Gatherer
// are optional.
type Deps struct {
	Intake   Submitter
	Records  Repository
	Login    LoginExchanger
	Metrics  *Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Router mounts every route.
func Router(cfg config.Config, d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &Handler{
		intake:        d.Intake,
		records:       d.Records,
		login:         d.Login,
		metrics:       d.Metrics,
		logger:        d.Logger,
		maxUpload:     cfg.MaxUploadBytes,
		tempDir:       cfg.TempDir,
		recordTimeout: cfg.RecordTimeout,
		idMode:        cfg.IDMode,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(d.Logger))
	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(notFound)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if d.Login != nil {
			r.Get("/line-callback", h.LineCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireAPIKey(cfg.APISecret, d.Logger))
			r.Post("/upload", h.Upload)
			r.Get("/admin/list", h.List)
			r.Post("/admin/update", h.Update)
		})
	})
	return r
}
