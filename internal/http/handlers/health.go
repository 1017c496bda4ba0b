package handlers

import "net/http"

// Health reports liveness plus the probed device capability.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"capability": string(a.Probe.Capability()),
	})
}
