package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shortly-app/shortly/internal/clicks"
	"github.com/shortly-app/shortly/internal/models"
	"github.com/shortly-app/shortly/internal/registry"
	"github.com/shortly-app/shortly/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// shortenRequest is the payload for creating a shortened URL. Validity is in
// minutes; zero means the server default. Shortcode requests a custom code.
type shortenRequest struct {
	URL       string `json:"url" validate:"required,url,max=2048"`
	Validity  int    `json:"validity" validate:"omitempty,min=1,max=525600"`
	ShortCode string `json:"shortcode" validate:"omitempty,alphanum,min=3,max=20"`
}

// urlResponse is the response payload for a shortened URL.
type urlResponse struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	ShortLink   string    `json:"short_link"`
	URL         string    `json:"url"`
	Validity    int       `json:"validity"`
	TotalClicks int       `json:"total_clicks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toURLResponse(url *models.ShortURL, baseURL string) urlResponse {
	return urlResponse{
		ID:        url.ID,
		ShortCode: url.ShortCode,
		ShortLink: strings.TrimSuffix(baseURL, "/") + "/" + url.ShortCode,
		URL:       url.OriginalURL,
		Validity:  url.ValidityMinutes,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
	}
}

// clickResponse is one click entry in the statistics payload. The requester IP
// is deliberately absent.
type clickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Location  string    `json:"location"`
	UserAgent string    `json:"user_agent"`
}

// statsResponse is the aggregate statistics payload for one short code.
type statsResponse struct {
	ShortCode   string          `json:"short_code"`
	URL         string          `json:"url"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	TotalClicks int             `json:"total_clicks"`
	Clicks      []clickResponse `json:"clicks"`
}

func toStatsResponse(stats *models.URLStats) statsResponse {
	resp := statsResponse{
		ShortCode:   stats.ShortCode,
		URL:         stats.OriginalURL,
		CreatedAt:   stats.CreatedAt,
		ExpiresAt:   stats.ExpiresAt,
		TotalClicks: stats.TotalClicks,
		Clicks:      make([]clickResponse, 0, len(stats.Clicks)),
	}

	for _, c := range stats.Clicks {
		resp.Clicks = append(resp.Clicks, clickResponse{
			Timestamp: c.Timestamp,
			Referrer:  c.Referrer,
			Location:  c.Location,
			UserAgent: c.UserAgent,
		})
	}

	return resp
}

// handleCreateShortURL handles POST requests to shorten a URL.
//
// The request must contain a valid URL and may carry a validity period and a
// custom short code. Duplicate custom codes map to 409, malformed ones to 400.
func handleCreateShortURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateShortURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, err := svc.CreateShortURL(req.URL, req.Validity, req.ShortCode)
		if err != nil {
			switch {
			case errors.Is(err, registry.ErrShortCodeExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeConflictResponse)
			case errors.Is(err, registry.ErrInvalidShortCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url, baseURL)))
	}
}

// handleListURLs handles GET requests for the dashboard list: every record
// with its click count. Expired-but-not-yet-cleaned records are included only
// when include_expired=true.
func handleListURLs(svc URLService, baseURL string) http.HandlerFunc {
	const successMsg = "The URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		includeExpired := r.URL.Query().Get("include_expired") == "true"

		summaries := svc.GetAllURLs(includeExpired)

		data := make([]urlResponse, 0, len(summaries))
		for _, s := range summaries {
			resp := toURLResponse(&s.ShortURL, baseURL)
			resp.TotalClicks = s.TotalClicks
			data = append(data, resp)
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleGetURLStats handles GET requests for per-code click statistics.
//
// Statistics stay readable for expired records until the cleanup pass removes
// them; only unknown short codes yield a 404.
func handleGetURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		stats, err := svc.GetStatistics(shortCode)
		if err != nil {
			if errors.Is(err, registry.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toStatsResponse(stats)))
	}
}

// handleRedirect resolves a short code and redirects the visitor to the
// original URL, submitting a click event for asynchronous recording. Expired
// and unknown codes both yield 404.
func handleRedirect(svc URLService, tracker ClickSubmitter) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLData(shortCode)
		if err != nil {
			if errors.Is(err, registry.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		tracker.Submit(clicks.Event{
			ShortCode: shortCode,
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
		})

		http.Redirect(w, r, url.OriginalURL, http.StatusFound)
	}
}

// clientIP returns RemoteAddr without the port. RealIP middleware has already
// substituted forwarding headers where present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
