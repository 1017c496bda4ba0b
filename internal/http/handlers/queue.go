package handlers

import "net/http"

// QueueSnapshot reports the running job and the waiting line.
func (a *App) QueueSnapshot(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Queue.Snapshot())
}
