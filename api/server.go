package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"rentscout/fetcher"
	"rentscout/models"
	"rentscout/search"
)

// Searcher runs filtered and unfiltered searches.
type Searcher interface {
	Run(ctx context.Context, c models.FilterCriteria) (search.Result, error)
	ShowAll(ctx context.Context) (search.Result, error)
}

// Lister pages through the backend's unfiltered listing.
type Lister interface {
	ListAll(ctx context.Context, q fetcher.ListQuery) (fetcher.ListResult, error)
}

type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewRouter builds the HTTP facade over the search layer.
func NewRouter(searcher Searcher, lister Lister, origins []string, logger *logrus.Logger, opts ...RouterOption) http.Handler {
	h := &handlers{searcher: searcher, lister: lister, logger: logger}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))
		r.Get("/properties", h.showAll)
		r.Post("/search", h.search)
		r.Get("/listings", h.listings)
		if h.history != nil {
			r.Get("/searches/{id}/runs", h.runs)
			r.Post("/searches/{id}/run", h.triggerRun)
			r.Get("/runs/{id}/logs", h.runLogs)
		}
	})
	return r
}

func NewServer(addr string, handler http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
