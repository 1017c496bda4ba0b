package domain

import "time"

// JobState enumerates the job lifecycle states.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether a state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// BackendKind identifies which rendering path a job was assigned.
type BackendKind string

const (
	BackendGaussianTrajectory BackendKind = "gaussian_trajectory"
	BackendDepthParallax      BackendKind = "depth_parallax"
)

// StageProgress is the per-stage progress record exposed to clients.
type StageProgress struct {
	Status   string  `json:"status"` // pending | running | done | error
	Progress float64 `json:"progress"`
}

// Job is the unit of work owned by the queue. The queue serializes all
// mutation; readers only ever see View() snapshots taken under the queue
// lock.
type Job struct {
	ID            string
	ImageName     string
	ImageFormat   string
	ImageWidth    int
	ImageHeight   int
	Image         []byte
	Preset        Preset
	Motion        MotionParams
	ForceFallback bool

	State       JobState
	Backend     BackendKind
	Stage       string
	StageOrder  []string
	Stages      map[string]*StageProgress
	Overall     float64
	ErrorDetail string

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	UpdatedAt  time.Time

	ArtifactID string
}

// JobView is a read-only snapshot of a Job safe to hand to any goroutine.
type JobView struct {
	ID          string                   `json:"job_id"`
	ImageName   string                   `json:"image_name"`
	State       JobState                 `json:"status"`
	Backend     BackendKind              `json:"backend,omitempty"`
	Stage       string                   `json:"stage,omitempty"`
	StageOrder  []string                 `json:"stage_order,omitempty"`
	Stages      map[string]StageProgress `json:"stages,omitempty"`
	Overall     float64                  `json:"overall_progress"`
	Error       string                   `json:"error,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	FinishedAt  *time.Time               `json:"finished_at,omitempty"`
	VideoReady  bool                     `json:"video_ready"`
	ArtifactID  string                   `json:"artifact_id,omitempty"`
	PresetName  string                   `json:"preset"`
	MotionKind  MotionKind               `json:"motion_kind"`
	ImageWidth  int                      `json:"image_width,omitempty"`
	ImageHeight int                      `json:"image_height,omitempty"`
}

// View copies the mutable fields into an immutable snapshot. Callers must
// hold whatever lock guards the Job.
func (j *Job) View() JobView {
	v := JobView{
		ID:          j.ID,
		ImageName:   j.ImageName,
		State:       j.State,
		Backend:     j.Backend,
		Stage:       j.Stage,
		Overall:     j.Overall,
		Error:       j.ErrorDetail,
		CreatedAt:   j.CreatedAt,
		VideoReady:  j.ArtifactID != "",
		ArtifactID:  j.ArtifactID,
		PresetName:  j.Preset.Name,
		MotionKind:  j.Motion.Kind,
		ImageWidth:  j.ImageWidth,
		ImageHeight: j.ImageHeight,
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		v.StartedAt = &t
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		v.FinishedAt = &t
	}
	if len(j.StageOrder) > 0 {
		v.StageOrder = append([]string(nil), j.StageOrder...)
	}
	if len(j.Stages) > 0 {
		v.Stages = make(map[string]StageProgress, len(j.Stages))
		for name, sp := range j.Stages {
			v.Stages[name] = *sp
		}
	}
	return v
}
