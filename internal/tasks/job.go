package tasks

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// NewJobID returns an id of the form job_<unix-ms>_<random>.
func NewJobID() string {
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(shared.GenerateID(), "-", "")[:12])
}

// Job is the mutable record of one conversion. All access goes through its methods.
//
// While the job is processing, only the orchestrator writes results, cursor and stats;
// Pause and Resume only flip the status.
type Job struct {
	mu sync.Mutex

	id          string
	playlistKey string
	tracks      []models.Track
	offset      int // index of tracks[0] in the caller's full list

	results    []models.MatchResult
	cursor     int
	status     models.JobStatus
	stopReason models.StopReason
	stats      models.Stats
	lastErr    string

	// Retry pass state. The queue is fixed once, when the cursor reaches the end.
	retried    bool
	retryQueue []int
	retryPos   int

	startTime  time.Time
	lastUpdate time.Time
	now        func() time.Time
}

// NewJob creates a job in the processing state. tracks is copied.
func NewJob(id string, tracks []models.Track, offset int) *Job {
	now := time.Now()
	return &Job{
		id:         id,
		tracks:     append([]models.Track(nil), tracks...),
		offset:     offset,
		results:    make([]models.MatchResult, 0, len(tracks)),
		status:     models.JobProcessing,
		stats:      models.Stats{Total: len(tracks)},
		startTime:  now,
		lastUpdate: now,
		now:        time.Now,
	}
}

func (j *Job) ID() string { return j.id }

// SetPlaylistKey sets the persistence key used when the job completes.
func (j *Job) SetPlaylistKey(key string) {
	j.mu.Lock()
	j.playlistKey = key
	j.mu.Unlock()
}

func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) Cursor() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor
}

func (j *Job) touch() {
	j.lastUpdate = j.now()
}

// Snapshot copies the job's state.
func (j *Job) Snapshot() models.Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := models.Snapshot{
		ID:          j.id,
		PlaylistKey: j.playlistKey,
		Status:      j.status,
		StopReason:  j.stopReason,
		Outcome:     models.OutcomeOf(j.status, j.stopReason, j.stats),
		Cursor:      j.cursor,
		Offset:      j.offset,
		Stats:       j.stats,
		Progress: models.Progress{
			Current:     j.cursor,
			Total:       len(j.tracks),
			Found:       j.stats.Found,
			Failed:      j.stats.Failed,
			SuccessRate: j.stats.SuccessRate(),
		},
		Timing: models.Timing{
			StartTime:  j.startTime,
			LastUpdate: j.lastUpdate,
		},
		Tracks:  append([]models.Track(nil), j.tracks...),
		Results: append([]models.MatchResult(nil), j.results...),
	}

	if j.status == models.JobProcessing && j.cursor > 0 && j.cursor < len(j.tracks) {
		perTrack := j.lastUpdate.Sub(j.startTime) / time.Duration(j.cursor)
		snap.Timing.EstimatedTimeRemaining = perTrack * time.Duration(len(j.tracks)-j.cursor)
	}
	return snap
}

// nextBatch returns the window [start, end) of at most size tracks at the cursor.
func (j *Job) nextBatch(size int) (int, []models.Track, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != models.JobProcessing || j.cursor >= len(j.tracks) {
		return j.cursor, nil, false
	}
	end := min(j.cursor+size, len(j.tracks))
	return j.cursor, j.tracks[j.cursor:end], true
}

// appendResults records a finished batch that started at start. A stale start is ignored.
func (j *Job) appendResults(start int, results []models.MatchResult) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if start != j.cursor || j.cursor+len(results) > len(j.tracks) {
		return false
	}
	for _, r := range results {
		j.results = append(j.results, r)
		j.stats.Record(r)
	}
	j.cursor += len(results)
	j.touch()
	return true
}

// stopRemainder fails every unprocessed track with msg and completes the job.
func (j *Job) stopRemainder(reason models.StopReason, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.cursor < len(j.tracks) {
		r := models.NewNotFound(models.ReasonError, msg)
		j.results = append(j.results, r)
		j.stats.Record(r)
		j.cursor++
	}
	j.status = models.JobCompleted
	j.stopReason = reason
	j.lastErr = msg
	j.touch()
}

// finish completes a job whose cursor reached the end. A paused job is completed too when
// no retry work is left, since it has no batch boundary left to stop at.
func (j *Job) finish(retry bool) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cursor < len(j.tracks) {
		return false
	}
	switch j.status {
	case models.JobProcessing:
	case models.JobPaused:
		if retry && j.retryPending() {
			return false
		}
	default:
		return false
	}
	j.status = models.JobCompleted
	j.touch()
	return true
}

// fail marks the job failed after an unexpected orchestration error.
func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = models.JobFailed
	j.stopReason = models.StopError
	j.lastErr = msg
	j.touch()
}

// pause flips a processing job to paused.
func (j *Job) pause() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != models.JobProcessing {
		return false
	}
	j.status = models.JobPaused
	j.touch()
	return true
}

// resume flips a paused job back to processing.
func (j *Job) resume() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != models.JobPaused {
		return false
	}
	j.status = models.JobProcessing
	j.touch()
	return true
}

// planRetry fixes the retry queue the first time it is called on a processing job whose
// cursor reached the end, and returns its length. Later calls return 0, so a resumed job
// continues the queue instead of planning it again.
func (j *Job) planRetry() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.retried || j.status != models.JobProcessing || j.cursor < len(j.tracks) {
		return 0
	}
	j.retried = true
	j.retryQueue = j.retryIndexes()
	return len(j.retryQueue)
}

// retryIndexes lists results that failed for lack of a good candidate. Caller holds mu.
func (j *Job) retryIndexes() []int {
	var idx []int
	for i, r := range j.results {
		switch r.Reason() {
		case models.ReasonNoCandidates, models.ReasonAllRejected:
			idx = append(idx, i)
		}
	}
	return idx
}

// retryPending reports whether retry work remains. Caller holds mu.
func (j *Job) retryPending() bool {
	if !j.retried {
		return len(j.retryIndexes()) > 0
	}
	return j.retryPos < len(j.retryQueue)
}

// nextRetryBatch returns at most size queued indexes at the retry position. Like nextBatch it
// yields nothing unless the job is processing.
func (j *Job) nextRetryBatch(size int) (int, []int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != models.JobProcessing || j.retryPos >= len(j.retryQueue) {
		return j.retryPos, nil, false
	}
	end := min(j.retryPos+size, len(j.retryQueue))
	return j.retryPos, append([]int(nil), j.retryQueue[j.retryPos:end]...), true
}

// applyRetry records a finished retry batch that started at start. Found results replace the
// failures at idx. The batch is discarded when the job stopped processing meanwhile or start
// is stale, so a resumed job reruns it.
func (j *Job) applyRetry(start int, idx []int, results []models.MatchResult) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != models.JobProcessing || start != j.retryPos || len(idx) != len(results) {
		return false
	}
	for k, i := range idx {
		j.replace(i, results[k])
	}
	j.retryPos += len(idx)
	j.touch()
	return true
}

// replace swaps results[i] for a found r. Caller holds mu.
func (j *Job) replace(i int, r models.MatchResult) bool {
	if i < 0 || i >= len(j.results) || j.results[i].IsFound() || !r.IsFound() {
		return false
	}
	j.results[i] = r
	j.stats.Failed--
	j.stats.Found++
	return true
}

func (j *Job) track(i int) models.Track {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tracks[i]
}

func (j *Job) lastUpdated() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastUpdate
}

func (j *Job) persistKey() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.playlistKey
}
