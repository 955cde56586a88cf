package http

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/shortly-app/shortly/internal/clicks"
	"github.com/shortly-app/shortly/internal/config"
	"github.com/shortly-app/shortly/internal/models"
	"github.com/shortly-app/shortly/pkg/middleware/ratelimit"
	"github.com/shortly-app/shortly/pkg/middleware/recoverer"
)

// URLService defines the registry facade consumed by the HTTP layer.
type URLService interface {
	// CreateShortURL registers originalURL under a generated or custom short code.
	CreateShortURL(originalURL string, validityMinutes int, customCode string) (*models.ShortURL, error)

	// GetURLData resolves a live short code; expired records are absent.
	GetURLData(shortCode string) (*models.ShortURL, error)

	// GetStatistics aggregates the click history of a short code.
	GetStatistics(shortCode string) (*models.URLStats, error)

	// GetAllURLs lists records with click counts, optionally including expired ones.
	GetAllURLs(includeExpired bool) []models.URLSummary
}

// ClickSubmitter accepts click events for asynchronous recording.
type ClickSubmitter interface {
	Submit(e clicks.Event) bool
}

// getValidate initializes a validator that reports field names from JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes the HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, svc URLService, tracker ClickSubmitter, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	if cfg.RateLimit.Enabled {
		r.Use(ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorturls", func(r chi.Router) {
			r.Post("/", handleCreateShortURL(svc, validate, cfg.BaseURL))
			r.Get("/", handleListURLs(svc, cfg.BaseURL))
			r.Get("/{shortCode}/stats", handleGetURLStats(svc))
		})
	})

	r.Get("/{shortCode}", handleRedirect(svc, tracker))

	return r
}
