package handlers

import "net/http"

// MetricsEstimate returns the fitted render-duration model so clients can
// predict queue wait from input megapixels.
func (a *App) MetricsEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := a.Metrics.Estimate(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, est)
}
