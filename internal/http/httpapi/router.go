// Package httpapi wires the route table and middleware chain.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"motiond/internal/http/handlers"
	"motiond/internal/infra"
	"motiond/internal/infra/geoip"
	"motiond/internal/middleware"
)

// Options carries the cross-cutting knobs the router applies around the
// handlers.
type Options struct {
	Logger             infra.Logger
	Countries          geoip.CountryResolver
	Password           string
	RateLimitPerMinute int
}

// NewRouter builds the HTTP route table.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger, opts.Countries),
	)

	// Liveness stays open so load balancers can probe without credentials.
	r.Get("/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth(opts.Password))

		r.Route("/jobs", func(r chi.Router) {
			// Only submission is rate limited; progress polling runs at
			// whatever cadence clients want.
			r.With(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute)).Post("/", app.SubmitJob)
			r.Get("/{jobID}", app.JobStatus)
			r.Delete("/{jobID}", app.CancelJob)
			r.Get("/{jobID}/result", app.JobResult)
			r.Get("/{jobID}/events", app.JobEvents)
		})
		r.Get("/queue", app.QueueSnapshot)
		r.Get("/presets", app.ListPresets)
		r.Get("/metrics/estimate", app.MetricsEstimate)
	})

	return r
}
