package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gallery/internal/http/handlers"
	"gallery/internal/middleware"
)

// NewRouter assembles the HTTP surface. Sessions are resolved for every
// request but never required here; the export service decides between
// session identity and distribution tokens.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.Session(app.Config.SessionSecret),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/collections", func(r chi.Router) {
		r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
			Post("/{id}/export", app.ExportCollection)
	})

	return r
}
