package handlers

import (
	"net/http"

	"motiond/internal/domain"
)

// ListPresets returns the preset ladder so clients can populate a picker.
func (a *App) ListPresets(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"default": domain.DefaultPresetName,
		"presets": domain.Presets(),
	})
}
