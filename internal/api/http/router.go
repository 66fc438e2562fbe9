package http

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/ommp-plugins/shorturl/internal/models"
	"github.com/ommp-plugins/shorturl/internal/module"
)

// ShortURLModule is the host-facing plugin surface the HTTP layer adapts to.
type ShortURLModule interface {
	HandleAPIAction(ctx context.Context, caller *models.Caller, action string, data map[string]string) (map[string]any, error)
	HandleURL(ctx context.Context, caller *models.Caller, path string, visit module.VisitContext) (module.Outcome, error)
	ExportCSV(ctx context.Context, caller *models.Caller, linkID int64, w io.Writer) error
	Localize(key string) string
}

func NewRouter(logger *httplog.Logger, mod ShortURLModule) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(CallerExtractor)

	r.Route("/api/shorturl", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/{action}", handleAPIAction(mod))
	})

	r.Get("/{identifier}", handleShortURL(mod))
	r.Get("/{identifier}/statistics", handleShortURL(mod))

	return r
}
