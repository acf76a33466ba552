package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// saveTimeout bounds the persistence call made when a job completes.
const saveTimeout = 10 * time.Second

// ResultStore persists completed conversions by playlist key.
type ResultStore interface {
	Save(ctx context.Context, key string, results []models.TrackResult) error
}

// RegistryOpts configures a [Registry].
type RegistryOpts struct {
	Store   ResultStore // optional
	Logger  *log.Logger
	Default BatchConfig // used when JobOptions.Config is zero
}

// JobOptions configures a single job.
type JobOptions struct {
	Config      BatchConfig
	PlaylistKey string
	Progress    chan<- ProgressUpdate
}

type entry struct {
	job      *Job
	cfg      BatchConfig
	progress chan<- ProgressUpdate
	cancel   context.CancelFunc
	done     chan struct{}
	saved    bool
}

// Registry is the Job Registry: it owns every job in the process and the goroutine driving each.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	matcher TrackMatcher
	store   ResultStore
	logger  *log.Logger
	def     BatchConfig

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewRegistry creates an empty registry whose jobs match tracks with matcher.
func NewRegistry(matcher TrackMatcher, opts RegistryOpts) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	def := opts.Default
	if def == (BatchConfig{}) {
		def = BackgroundProfile().Config
	}
	base, stop := context.WithCancel(context.Background())
	return &Registry{
		jobs:    make(map[string]*entry),
		matcher: matcher,
		store:   opts.Store,
		logger:  logger,
		def:     def,
		base:    base,
		stop:    stop,
		now:     time.Now,
	}
}

// Create registers a job over tracks and starts processing it in the background.
func (r *Registry) Create(tracks []models.Track, opts JobOptions) (string, error) {
	return r.add(NewJob(NewJobID(), tracks, 0), opts)
}

// Window returns tracks[startFrom:startFrom+maxTracks]. A maxTracks of zero means through the
// end of the list.
func Window(tracks []models.Track, startFrom, maxTracks int) ([]models.Track, error) {
	if startFrom < 0 || maxTracks < 0 {
		return nil, fmt.Errorf("%w: start_from and max_tracks must not be negative", shared.ErrInvalidInput)
	}
	if startFrom > 0 && startFrom >= len(tracks) {
		return nil, fmt.Errorf("%w: start_from %d is past the end of %d tracks", shared.ErrInvalidInput, startFrom, len(tracks))
	}
	end := len(tracks)
	if maxTracks > 0 {
		end = min(startFrom+maxTracks, len(tracks))
	}
	return tracks[startFrom:end], nil
}

// CreateWindow registers a job over the [Window] of tracks, keeping result indexes relative to
// the full list.
func (r *Registry) CreateWindow(tracks []models.Track, startFrom, maxTracks int, opts JobOptions) (string, error) {
	window, err := Window(tracks, startFrom, maxTracks)
	if err != nil {
		return "", err
	}
	return r.add(NewJob(NewJobID(), window, startFrom), opts)
}

func (r *Registry) add(job *Job, opts JobOptions) (string, error) {
	cfg := opts.Config
	if cfg == (BatchConfig{}) {
		cfg = r.def
	}
	if opts.PlaylistKey != "" {
		job.SetPlaylistKey(opts.PlaylistKey)
	}
	e := &entry{job: job, cfg: cfg, progress: opts.Progress}

	r.mu.Lock()
	if r.base.Err() != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: registry is shut down", shared.ErrServiceUnavailable)
	}
	r.jobs[job.ID()] = e
	r.start(e, nil, nil)
	r.mu.Unlock()

	r.logger.Info("job created", "job", job.ID(), "tracks", len(job.tracks), "offset", job.offset, "batch_size", cfg.BatchSize)
	return job.ID(), nil
}

// start launches the orchestration loop for e once prev (if any) has exited. Callers hold r.mu.
//
// prevCancel is chained into the entry's cancel so that deleting a resumed job also stops a
// loop still draining its last batch.
func (r *Registry) start(e *entry, prev <-chan struct{}, prevCancel context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.base)
	done := make(chan struct{})
	e.cancel = cancel
	if prevCancel != nil {
		e.cancel = func() {
			cancel()
			prevCancel()
		}
	}
	e.done = done

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		defer cancel()

		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				return
			}
		}
		NewOrchestrator(r.matcher, e.cfg, r.logger).Process(ctx, e.job, e.progress)
		r.persist(e)
	}()
}

// persist saves a cleanly completed job once.
func (r *Registry) persist(e *entry) {
	if r.store == nil {
		return
	}
	snap := e.job.Snapshot()
	if snap.Status != models.JobCompleted || snap.StopReason != models.StopNone || snap.PlaylistKey == "" {
		return
	}

	r.mu.Lock()
	if e.saved {
		r.mu.Unlock()
		return
	}
	e.saved = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.store.Save(ctx, snap.PlaylistKey, snap.TrackResults()); err != nil {
		r.logger.Error("failed to save conversion", "job", snap.ID, "key", snap.PlaylistKey, "error", err)
		return
	}
	r.logger.Debug("conversion saved", "job", snap.ID, "key", snap.PlaylistKey)
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return e, nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (models.Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return e.job.Snapshot(), nil
}

// Results returns the job's results so far, joined with their tracks.
func (r *Registry) Results(id string) ([]models.TrackResult, error) {
	snap, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return snap.TrackResults(), nil
}

// Pause asks a processing job to stop at its next batch boundary.
func (r *Registry) Pause(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if !e.job.pause() {
		return fmt.Errorf("%w: cannot pause a %s job", shared.ErrInvalidTransition, e.job.Status())
	}
	r.logger.Info("job paused", "job", id, "cursor", e.job.Cursor())
	return nil
}

// Resume restarts a paused job from its cursor. If the previous loop is still finishing its
// batch, the new loop waits for it.
func (r *Registry) Resume(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if !e.job.resume() {
		return fmt.Errorf("%w: cannot resume a %s job", shared.ErrInvalidTransition, e.job.Status())
	}
	r.start(e, e.done, e.cancel)
	r.logger.Info("job resumed", "job", id, "cursor", e.job.Cursor())
	return nil
}

// Delete cancels the job and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	e.cancel()
	r.logger.Info("job deleted", "job", id)
	return nil
}

// List returns snapshots of every job, oldest first.
func (r *Registry) List() []models.Snapshot {
	r.mu.RLock()
	snaps := make([]models.Snapshot, 0, len(r.jobs))
	for _, e := range r.jobs {
		snaps = append(snaps, e.job.Snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(snaps, func(a, b models.Snapshot) int {
		if c := a.Timing.StartTime.Compare(b.Timing.StartTime); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
	return snaps
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// GC removes completed and failed jobs not updated within maxAge and returns how many it removed.
func (r *Registry) GC(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.jobs {
		switch e.job.Status() {
		case models.JobCompleted, models.JobFailed:
		default:
			continue
		}
		if e.job.lastUpdated().Before(cutoff) {
			e.cancel()
			delete(r.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("collected jobs", "removed", removed, "remaining", len(r.jobs))
	}
	return removed
}

// StartJanitor runs GC every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.base.Done():
				return
			case <-ticker.C:
				r.GC(retention)
			}
		}
	}()
}

// Wait blocks until the job's orchestration loop exits, following resumes.
func (r *Registry) Wait(ctx context.Context, id string) error {
	for {
		r.mu.RLock()
		e, ok := r.jobs[id]
		var done chan struct{}
		if ok {
			done = e.done
		}
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		r.mu.RLock()
		same := e.done == done
		r.mu.RUnlock()
		if same {
			return nil
		}
	}
}

// Shutdown cancels every job and waits for their loops to exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stop()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
