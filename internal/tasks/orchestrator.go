package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/matching"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// salvageQueries caps the queries a salvaged track may issue.
const salvageQueries = 2

// TrackMatcher resolves one track. [*matching.Matcher] implements it.
type TrackMatcher interface {
	Match(ctx context.Context, track models.Track, opts matching.MatchOptions) models.MatchResult
}

// Orchestrator is the Batch Orchestrator: it drives a [Job] forward batch by batch.
type Orchestrator struct {
	matcher TrackMatcher
	cfg     BatchConfig
	logger  *log.Logger
}

// NewOrchestrator creates an orchestrator. Unset config fields take background defaults.
func NewOrchestrator(matcher TrackMatcher, cfg BatchConfig, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Orchestrator{matcher: matcher, cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() BatchConfig { return o.cfg }

// Run processes tracks synchronously in a fresh job and returns its final snapshot.
func (o *Orchestrator) Run(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) models.Snapshot {
	job := NewJob(NewJobID(), tracks, 0)
	o.Process(ctx, job, progress)
	return job.Snapshot()
}

// Process drives job until it completes, is paused, or ctx is cancelled.
//
// Pause is honored between batches only. A cancelled ctx abandons the current batch without
// recording it, leaving the cursor at the last batch boundary.
func (o *Orchestrator) Process(ctx context.Context, job *Job, progress chan<- ProgressUpdate) {
	logger := o.logger.With("job", job.ID())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("orchestration panic", "panic", r)
			job.fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	var deadline time.Time
	if o.cfg.GlobalTimeout > 0 {
		deadline = time.Now().Add(o.cfg.GlobalTimeout)
	}

	consecutive := 0
	batch := 0
	for {
		if ctx.Err() != nil {
			logger.Debug("job context cancelled", "cursor", job.Cursor())
			return
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			o.stop(job, progress, models.StopGlobalTimeout, shared.ErrGlobalTimeout.Error())
			return
		}

		start, tracks, ok := job.nextBatch(o.cfg.BatchSize)
		if !ok {
			break
		}
		batch++

		results, failed, globalHit := o.runBatch(ctx, job, tracks, deadline, progress)
		if ctx.Err() != nil {
			return
		}
		if !job.appendResults(start, results) {
			logger.Warn("stale batch discarded", "start", start)
			return
		}

		snap := job.Snapshot()
		sendProgress(progress, batchUpdate(snap, batch, len(tracks), failed))
		logger.Info("batch done", "batch", batch, "cursor", snap.Cursor, "total", len(snap.Tracks), "found", snap.Stats.Found, "failed", failed)

		if globalHit {
			o.stop(job, progress, models.StopGlobalTimeout, shared.ErrGlobalTimeout.Error())
			return
		}

		if failed {
			consecutive++
		} else {
			consecutive = 0
		}
		if consecutive >= o.cfg.MaxConsecutiveBatchFailures {
			o.stop(job, progress, models.StopCircuitBreaker, shared.ErrCircuitOpen.Error())
			return
		}

		if job.Cursor() >= len(snap.Tracks) {
			break
		}

		delay := o.cfg.InterBatchDelay
		if failed {
			delay = o.cfg.FailedBatchDelay
		}
		if !deadline.IsZero() {
			delay = min(delay, time.Until(deadline))
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	if o.cfg.AdvancedRetry {
		o.retryPass(ctx, job, progress, deadline)
		if ctx.Err() != nil {
			return
		}
	}

	if job.finish(o.cfg.AdvancedRetry) {
		snap := job.Snapshot()
		sendProgress(progress, finishedUpdate(snap))
		logger.Info("job completed", "found", snap.Stats.Found, "failed", snap.Stats.Failed)
	}
}

func (o *Orchestrator) stop(job *Job, progress chan<- ProgressUpdate, reason models.StopReason, msg string) {
	job.stopRemainder(reason, msg)
	snap := job.Snapshot()
	o.logger.Warn("job stopped early", "job", job.ID(), "reason", reason, "cursor", snap.Cursor)
	sendProgress(progress, stoppedUpdate(snap, msg))
}

func (o *Orchestrator) matchOptions() matching.MatchOptions {
	return matching.MatchOptions{
		Advanced:     o.cfg.Advanced,
		QueryTimeout: o.cfg.QueryTimeout,
		TrackBudget:  o.cfg.TrackBudget,
	}
}

// match calls the matcher, converting a panic into a NotFound.
func (o *Orchestrator) match(ctx context.Context, track models.Track, opts matching.MatchOptions) (result models.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.NewNotFound(models.ReasonError, fmt.Sprintf("panic: %v", r))
		}
	}()
	result = o.matcher.Match(ctx, track, opts)
	if result.IsZero() {
		result = models.NewNotFound(models.ReasonError, "matcher returned no result")
	}
	return result
}

// runBatch matches tracks concurrently. It reports whether the batch counts as failed (the
// deadline fired, or every track failed systemically) and whether the global deadline cut it short.
func (o *Orchestrator) runBatch(ctx context.Context, job *Job, tracks []models.Track, deadline time.Time, progress chan<- ProgressUpdate) ([]models.MatchResult, bool, bool) {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]models.MatchResult, len(tracks))
	var (
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
	)
	opts := o.matchOptions()
	for i, track := range tracks {
		wg.Add(1)
		go func(i int, track models.Track) {
			defer wg.Done()
			r := o.match(bctx, track, opts)
			mu.Lock()
			if !closed {
				results[i] = r
			}
			mu.Unlock()
		}(i, track)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	wait := o.cfg.PerBatchTimeout
	globalBound := false
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < wait {
			wait = max(remaining, 0)
			globalBound = true
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-allDone:
		return results, systemicFailure(results), false
	case <-ctx.Done():
		return results, false, false
	case <-timer.C:
	}

	mu.Lock()
	closed = true
	var pending []int
	for i, r := range results {
		if r.IsZero() {
			pending = append(pending, i)
		}
	}
	mu.Unlock()
	cancel()

	if globalBound {
		for _, i := range pending {
			results[i] = models.NewNotFound(models.ReasonError, shared.ErrGlobalTimeout.Error())
		}
		return results, true, true
	}

	o.logger.Warn("batch deadline exceeded", "job", job.ID(), "pending", len(pending), "timeout", o.cfg.PerBatchTimeout)
	sendProgress(progress, salvageUpdate(job.Snapshot(), len(pending)))
	o.salvage(ctx, tracks, results, pending)
	return results, true, false
}

// salvage retries each pending track once with a short timeout. Tracks that still do not
// resolve become NotFound{timeout}.
func (o *Orchestrator) salvage(ctx context.Context, tracks []models.Track, results []models.MatchResult, pending []int) {
	opts := matching.MatchOptions{
		QueryTimeout: o.cfg.SalvageTimeout,
		TrackBudget:  o.cfg.SalvageTimeout,
		MaxQueries:   salvageQueries,
	}

	var wg sync.WaitGroup
	for _, i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, o.cfg.SalvageTimeout)
			defer cancel()

			r := o.match(sctx, tracks[i], opts)
			if !r.IsFound() && sctx.Err() != nil {
				r = models.NewNotFound(models.ReasonTimeout, shared.ErrBatchTimeout.Error())
			}
			results[i] = r
		}(i)
	}
	wg.Wait()
}

// systemicFailure reports whether every track failed on search errors or timeouts, which
// points at the search dependency rather than at the tracks.
func systemicFailure(results []models.MatchResult) bool {
	if len(results) == 0 {
		return false
	}
	searched := false
	for _, r := range results {
		nf, ok := r.NotFound()
		if !ok {
			return false
		}
		if nf.Reason != models.ReasonTimeout && nf.Reason != models.ReasonError {
			return false
		}
		if nf.LastError != matching.SkippedMessage {
			searched = true
		}
	}
	return searched
}

// retryPass rematches tracks that failed for lack of a good candidate, using only the advanced
// queries. Found results replace the failures in place. Like the main loop it checks the job
// status between batches, so a pause stops it and a resume continues the queue.
func (o *Orchestrator) retryPass(ctx context.Context, job *Job, progress chan<- ProgressUpdate, deadline time.Time) {
	if n := job.planRetry(); n > 0 {
		sendProgress(progress, retryUpdate(job.Snapshot(), n))
	}

	opts := o.matchOptions()
	opts.Retry = true

	for {
		if ctx.Err() != nil || (!deadline.IsZero() && !time.Now().Before(deadline)) {
			return
		}
		start, idx, ok := job.nextRetryBatch(o.cfg.BatchSize)
		if !ok {
			return
		}

		timeout := o.cfg.PerBatchTimeout
		if !deadline.IsZero() {
			timeout = min(timeout, time.Until(deadline))
		}
		bctx, cancel := context.WithTimeout(ctx, timeout)
		results := make([]models.MatchResult, len(idx))
		var wg sync.WaitGroup
		for k, i := range idx {
			wg.Add(1)
			go func(k, i int) {
				defer wg.Done()
				results[k] = o.match(bctx, job.track(i), opts)
			}(k, i)
		}
		wg.Wait()
		cancel()

		if ctx.Err() != nil {
			return
		}
		if !job.applyRetry(start, idx, results) {
			o.logger.Debug("retry batch discarded", "job", job.ID(), "start", start, "status", job.Status())
			return
		}
	}
}
