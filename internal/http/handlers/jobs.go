package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"motiond/internal/domain"
	"motiond/internal/queue"
)

// SubmitJob accepts a multipart form with an "image" part plus optional
// preset and motion fields and enqueues a render job.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		a.fail(w, fmt.Errorf("%w: parse multipart form: %v", domain.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		a.fail(w, fmt.Errorf("%w: missing image part", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.fail(w, fmt.Errorf("%w: read image: %v", domain.ErrInvalidInput, err))
		return
	}

	motion, err := motionFromForm(r)
	if err != nil {
		a.fail(w, err)
		return
	}

	view, err := a.Queue.Submit(r.Context(), queue.SubmitRequest{
		ImageName:     header.Filename,
		ImageBytes:    data,
		PresetName:    r.FormValue("preset"),
		Motion:        motion,
		ForceFallback: r.FormValue("force_fallback") == "1" || r.FormValue("force_fallback") == "true",
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, view)
}

// motionFromForm builds MotionParams from form fields, leaving absent fields
// zero so the queue's clamp applies the defaults.
func motionFromForm(r *http.Request) (domain.MotionParams, error) {
	kind, err := domain.ParseMotionKind(r.FormValue("motion_kind"))
	if err != nil {
		return domain.MotionParams{}, err
	}
	m := domain.MotionParams{Kind: kind}

	floats := map[string]*float64{
		"duration_s":    &m.DurationS,
		"motion_scale":  &m.MotionScale,
		"wobble_scale":  &m.WobbleScale,
		"max_disparity": &m.MaxDisparity,
		"max_zoom":      &m.MaxZoom,
	}
	for field, dst := range floats {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.MotionParams{}, fmt.Errorf("%w: bad %s %q", domain.ErrInvalidInput, field, raw)
		}
		*dst = v
	}

	ints := map[string]*int{
		"fps":         &m.FPS,
		"num_repeats": &m.NumRepeats,
	}
	for field, dst := range ints {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.MotionParams{}, fmt.Errorf("%w: bad %s %q", domain.ErrInvalidInput, field, raw)
		}
		*dst = v
	}
	return m, nil
}

// JobStatus returns the job's current snapshot.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	view, err := a.Queue.Status(chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

// CancelJob requests cancellation and returns the snapshot taken right after
// the request. Running jobs cancel cooperatively, so the response is 202
// rather than a completed 200. Repeat cancels are no-ops.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	view, err := a.Queue.Cancel(chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, view)
}

// JobResult streams the rendered video. ?download=1 forces an attachment
// disposition.
func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	view, err := a.Queue.Status(jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if view.ArtifactID == "" {
		a.fail(w, fmt.Errorf("%w: no result for job %s yet", domain.ErrNotFound, jobID))
		return
	}

	lease, err := a.Artifacts.Open(r.Context(), view.ArtifactID)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer lease.Close()

	contentType := mime.TypeByExtension(lease.Artifact.Ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(lease.Artifact.Size, 10))
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "motion-"+jobID+lease.Artifact.Ext))
	}
	_, _ = io.Copy(w, lease.Reader)
}
