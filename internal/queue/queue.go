// Package queue is the orchestration core: a FIFO job queue drained by a
// single worker goroutine. The worker is the only point of accelerator mutual
// exclusion; submission, status, cancel, and subscribe never block on it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"motiond/internal/artifact"
	"motiond/internal/device"
	"motiond/internal/domain"
	"motiond/internal/imageio"
	"motiond/internal/infra"
	"motiond/internal/metrics"
	"motiond/internal/pipeline"
)

// subscriberBuffer sizes per-subscriber channels. A slow consumer drops
// intermediate snapshots rather than stalling the worker; the terminal
// snapshot is always delivered because the channel is drained-then-closed.
const subscriberBuffer = 16

// Options configures a Queue.
type Options struct {
	Pipeline  pipeline.Deps
	Probe     *device.Probe
	Artifacts *artifact.Store
	Metrics   *metrics.Store
	Logger    infra.Logger

	// RetainFor bounds how long terminal jobs stay queryable. Zero means
	// the 30 minute default.
	RetainFor time.Duration
}

// SubmitRequest is a validated-on-entry job submission.
type SubmitRequest struct {
	ImageName     string
	ImageBytes    []byte
	PresetName    string
	Motion        domain.MotionParams
	ForceFallback bool
}

// QueuedItem is one waiting job in a queue snapshot.
type QueuedItem struct {
	JobID     string `json:"job_id"`
	Position  int    `json:"position"`
	ImageName string `json:"image_name,omitempty"`
}

// Snapshot is a point-in-time picture of the queue.
type Snapshot struct {
	Running *domain.JobView `json:"running,omitempty"`
	Waiting []QueuedItem    `json:"waiting"`
	Depth   int             `json:"depth"`
}

type subscriber struct {
	ch chan domain.JobView
}

// Queue owns all job records. Every mutation happens under mu; the worker
// goroutine is the only code that moves a job through Running.
type Queue struct {
	opts  Options
	clock func() time.Time

	mu            sync.Mutex
	jobs          map[string]*domain.Job
	pending       []string
	runningID     string
	cancelRunning context.CancelFunc
	subs          map[string][]*subscriber
	closed        bool

	wake chan struct{}
	done chan struct{}
}

// New builds a Queue. Call Start to launch the worker.
func New(opts Options) *Queue {
	if opts.RetainFor <= 0 {
		opts.RetainFor = 30 * time.Minute
	}
	return &Queue{
		opts:  opts,
		clock: time.Now,
		jobs:  make(map[string]*domain.Job),
		subs:  make(map[string][]*subscriber),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Submit validates the upload and parameters synchronously, then enqueues a
// new job and returns its initial snapshot without waiting for the worker.
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (domain.JobView, error) {
	info, err := imageio.Sniff(req.ImageBytes)
	if err != nil {
		return domain.JobView{}, err
	}
	// HEIC can only be decoded by the engine sidecar; without one, every
	// backend would fail the job at its first stage, so fail fast here.
	if info.Format == imageio.FormatHEIC && !q.opts.Pipeline.Engine.Remote() {
		return domain.JobView{}, fmt.Errorf("%w: heic input requires a configured inference engine", domain.ErrInvalidInput)
	}

	presetName := req.PresetName
	if presetName == "" {
		presetName = domain.DefaultPresetName
	}
	preset, err := domain.ResolvePreset(presetName)
	if err != nil {
		return domain.JobView{}, err
	}

	motion := req.Motion
	if motion.Kind == "" {
		motion.Kind = domain.MotionSwipe
	}
	motion.Clamp()

	name := req.ImageName
	if name == "" {
		name = "upload." + info.Format
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		ImageName:     name,
		ImageFormat:   info.Format,
		ImageWidth:    info.Width,
		ImageHeight:   info.Height,
		Image:         req.ImageBytes,
		Preset:        preset,
		Motion:        motion,
		ForceFallback: req.ForceFallback,
		State:         domain.JobQueued,
		CreatedAt:     q.clock(),
		UpdatedAt:     q.clock(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.JobView{}, domain.ErrQueueClosed
	}
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	view := job.View()
	q.mu.Unlock()

	q.signal()
	q.opts.Logger.Info().
		Str("job_id", job.ID).
		Str("preset", preset.Name).
		Str("motion_kind", string(motion.Kind)).
		Str("format", info.Format).
		Msg("queue: job submitted")
	return view, nil
}

// Status returns a read-only snapshot of the job.
func (q *Queue) Status(id string) (domain.JobView, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return domain.JobView{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return job.View(), nil
}

// Cancel requests cancellation. Queued jobs cancel immediately and never run;
// a running job is cancelled cooperatively at the next stage boundary.
// Cancelling a terminal job is a no-op.
func (q *Queue) Cancel(id string) (domain.JobView, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return domain.JobView{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}

	switch job.State {
	case domain.JobQueued:
		q.removePendingLocked(id)
		q.finishLocked(job, domain.JobCancelled, "")
		view := job.View()
		q.mu.Unlock()
		q.opts.Logger.Info().Str("job_id", id).Msg("queue: queued job cancelled")
		return view, nil
	case domain.JobRunning:
		cancel := q.cancelRunning
		view := job.View()
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		q.opts.Logger.Info().Str("job_id", id).Msg("queue: cancellation requested")
		return view, nil
	default:
		view := job.View()
		q.mu.Unlock()
		return view, nil
	}
}

// Subscribe returns a stream of job snapshots starting with the current state
// and ending after the terminal snapshot, plus a release function the caller
// must invoke when done (safe after the channel closes).
func (q *Queue) Subscribe(id string) (<-chan domain.JobView, func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}

	sub := &subscriber{ch: make(chan domain.JobView, subscriberBuffer)}
	sub.ch <- job.View()
	if job.State.Terminal() {
		close(sub.ch)
		return sub.ch, func() {}, nil
	}

	q.subs[id] = append(q.subs[id], sub)
	release := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.dropSubscriberLocked(id, sub)
	}
	return sub.ch, release, nil
}

// Snapshot reports the running job and the waiting line in FIFO order.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := Snapshot{Waiting: make([]QueuedItem, 0, len(q.pending))}
	if q.runningID != "" {
		if job, ok := q.jobs[q.runningID]; ok {
			v := job.View()
			snap.Running = &v
		}
	}
	for i, id := range q.pending {
		item := QueuedItem{JobID: id, Position: i + 1}
		if job, ok := q.jobs[id]; ok {
			item.ImageName = job.ImageName
		}
		snap.Waiting = append(snap.Waiting, item)
	}
	snap.Depth = len(q.pending)
	return snap
}

// Start launches the worker and the terminal-job janitor. ctx cancellation
// initiates drain: the in-flight job is cancelled, waiting jobs are marked
// cancelled, and the worker exits.
func (q *Queue) Start(ctx context.Context) {
	go q.janitor(ctx)
	go q.worker(ctx)
}

// Wait blocks until the worker has exited after Start's context is cancelled.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)
	for {
		job := q.dequeue(ctx)
		if job == nil {
			q.drain()
			return
		}
		q.run(ctx, job)
	}
}

// dequeue blocks until a job is available or the context ends. The state
// check happens under the lock so a concurrent Cancel cannot slip between the
// pop and the check.
func (q *Queue) dequeue(ctx context.Context) *domain.Job {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			job := q.jobs[id]
			stillQueued := job != nil && job.State == domain.JobQueued
			q.mu.Unlock()
			if !stillQueued {
				continue
			}
			return job
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}
	}
}

// run executes one job start to finish. It never panics the worker: stage
// errors, collaborator failures, and cancellations all resolve to a terminal
// job state.
func (q *Queue) run(ctx context.Context, job *domain.Job) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Claim the job before any slow work (the first capability probe can
	// shell out to nvidia-smi). A Cancel that won the race leaves the job
	// terminal and terminal states are never overwritten.
	q.mu.Lock()
	if job.State != domain.JobQueued {
		q.mu.Unlock()
		return
	}
	job.State = domain.JobRunning
	job.StartedAt = q.clock()
	job.UpdatedAt = job.StartedAt
	q.runningID = job.ID
	q.cancelRunning = cancel
	q.notifyLocked(job)
	q.mu.Unlock()

	capability := q.opts.Probe.Capability()
	backend, err := pipeline.Select(capability, job.ForceFallback, q.opts.Pipeline)
	if err != nil {
		q.mu.Lock()
		q.finishLocked(job, domain.JobFailed, err.Error())
		q.mu.Unlock()
		return
	}
	if runCtx.Err() != nil {
		// Cancelled while the probe was still running; no stage started.
		q.mu.Lock()
		q.finishLocked(job, domain.JobCancelled, "")
		q.mu.Unlock()
		return
	}

	stages := backend.Stages()
	q.mu.Lock()
	job.Backend = backend.Kind()
	job.StageOrder = pipeline.StageNames(backend)
	job.Stages = make(map[string]*domain.StageProgress, len(stages))
	for _, s := range stages {
		job.Stages[s.Name] = &domain.StageProgress{Status: "pending"}
	}
	job.UpdatedAt = q.clock()
	q.notifyLocked(job)
	q.mu.Unlock()

	q.opts.Logger.Info().
		Str("job_id", job.ID).
		Str("backend", string(backend.Kind())).
		Str("capability", string(capability)).
		Msg("queue: job started")

	weights := make(map[string]float64, len(stages))
	var completed float64
	for _, s := range stages {
		weights[s.Name] = s.Weight
	}

	progress := func(stage string, frac float64) {
		q.mu.Lock()
		defer q.mu.Unlock()
		sp, ok := job.Stages[stage]
		if !ok {
			return
		}
		if sp.Status == "pending" {
			sp.Status = "running"
			job.Stage = stage
		}
		if frac > sp.Progress {
			sp.Progress = frac
		}
		if sp.Progress >= 1 && sp.Status != "done" {
			sp.Status = "done"
			completed += weights[stage]
		}
		overall := completed
		if sp.Status == "running" {
			overall += weights[stage] * sp.Progress
		}
		if overall > job.Overall {
			job.Overall = overall
		}
		job.UpdatedAt = q.clock()
		q.notifyLocked(job)
	}

	result, runErr := backend.Run(runCtx, &pipeline.RunRequest{
		ImageBytes:  job.Image,
		ImageFormat: job.ImageFormat,
		Preset:      job.Preset,
		Motion:      job.Motion,
	}, progress)

	if runErr != nil {
		q.finishWithError(job, runErr)
		return
	}

	art, putErr := q.opts.Artifacts.Put(context.Background(), job.ID, result.Ext, result.Video)
	if putErr != nil {
		q.finishWithError(job, putErr)
		return
	}

	duration := q.clock().Sub(job.StartedAt).Seconds()
	if mErr := q.opts.Metrics.Record(context.Background(), metrics.Sample{
		Megapixels: result.Megapixels,
		DurationS:  duration,
		Backend:    string(backend.Kind()),
		Preset:     job.Preset.Name,
	}); mErr != nil {
		q.opts.Logger.Warn().Err(mErr).Str("job_id", job.ID).Msg("queue: metrics record failed")
	}

	q.mu.Lock()
	job.ArtifactID = art.ID
	job.Overall = 1
	job.Stage = ""
	q.finishLocked(job, domain.JobDone, "")
	q.mu.Unlock()

	q.opts.Logger.Info().
		Str("job_id", job.ID).
		Str("artifact_id", art.ID).
		Float64("duration_s", duration).
		Int("frames", result.FrameCount).
		Msg("queue: job done")
}

func (q *Queue) finishWithError(job *domain.Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) {
		q.finishLocked(job, domain.JobCancelled, "")
		q.opts.Logger.Info().Str("job_id", job.ID).Msg("queue: job cancelled")
		return
	}

	if sp, ok := job.Stages[job.Stage]; ok && sp.Status == "running" {
		sp.Status = "error"
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		if sp, ok := job.Stages[stageErr.Stage]; ok {
			sp.Status = "error"
		}
	}
	q.finishLocked(job, domain.JobFailed, err.Error())
	q.opts.Logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: job failed")
}

// finishLocked moves a job to a terminal state, releases its image bytes, and
// closes all subscriber streams. Caller holds q.mu.
func (q *Queue) finishLocked(job *domain.Job, state domain.JobState, detail string) {
	if job.State.Terminal() {
		return
	}
	job.State = state
	job.ErrorDetail = detail
	job.FinishedAt = q.clock()
	job.UpdatedAt = job.FinishedAt
	job.Image = nil
	if q.runningID == job.ID {
		q.runningID = ""
		q.cancelRunning = nil
	}
	q.notifyLocked(job)
	for _, sub := range q.subs[job.ID] {
		close(sub.ch)
	}
	delete(q.subs, job.ID)
}

// notifyLocked pushes the current snapshot to every subscriber. Full buffers
// drop the oldest snapshot first so the latest state always lands.
func (q *Queue) notifyLocked(job *domain.Job) {
	subs := q.subs[job.ID]
	if len(subs) == 0 {
		return
	}
	view := job.View()
	for _, sub := range subs {
		select {
		case sub.ch <- view:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- view:
			default:
			}
		}
	}
}

func (q *Queue) dropSubscriberLocked(id string, target *subscriber) {
	subs := q.subs[id]
	for i, sub := range subs {
		if sub == target {
			q.subs[id] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (q *Queue) removePendingLocked(id string) {
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// drain marks every still-waiting job cancelled during shutdown.
func (q *Queue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for _, id := range q.pending {
		if job, ok := q.jobs[id]; ok && job.State == domain.JobQueued {
			q.finishLocked(job, domain.JobCancelled, "")
		}
	}
	q.pending = nil
	q.opts.Logger.Info().Msg("queue: drained")
}

// janitor evicts terminal jobs (and their artifacts) once they age past
// RetainFor, so memory does not grow with history.
func (q *Queue) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.collect()
		}
	}
}

func (q *Queue) collect() {
	cutoff := q.clock().Add(-q.opts.RetainFor)

	q.mu.Lock()
	var expired []string
	for id, job := range q.jobs {
		if job.State.Terminal() && job.FinishedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(q.jobs, id)
	}
	q.mu.Unlock()

	for _, id := range expired {
		q.opts.Artifacts.EvictJob(id)
	}
	if len(expired) > 0 {
		q.opts.Logger.Info().Int("count", len(expired)).Msg("queue: collected finished jobs")
	}
}
