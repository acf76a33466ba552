package models

import "time"

// JobStatus is the lifecycle state of an asynchronous conversion job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobPaused     JobStatus = "paused"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// StopReason records why a job completed before processing every track normally.
type StopReason string

const (
	StopNone           StopReason = ""
	StopCircuitBreaker StopReason = "circuit_breaker"
	StopGlobalTimeout  StopReason = "global_timeout"
	StopError          StopReason = "error"
)

// Outcome is the caller-facing summary of a job, distinguishing results that need different handling.
type Outcome string

const (
	OutcomeProcessing            Outcome = "processing"
	OutcomePaused                Outcome = "paused"
	OutcomeCompleted             Outcome = "completed"
	OutcomeCompletedWithFailures Outcome = "completed_with_failures"
	OutcomeStoppedEarly          Outcome = "stopped_early"
	OutcomeFailed                Outcome = "failed"
)

// Stats are counters derived from a job's results.
type Stats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Found     int `json:"found"`
	Failed    int `json:"failed"`
}

// Record folds one result into the counters.
func (s *Stats) Record(r MatchResult) {
	s.Processed++
	if r.IsFound() {
		s.Found++
	} else {
		s.Failed++
	}
}

// SuccessRate returns found/processed as a percentage.
func (s Stats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Processed) * 100
}

// Progress is the polled progress block of the job control surface.
type Progress struct {
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	Found       int     `json:"found"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Timing is the polled timing block of the job control surface.
type Timing struct {
	StartTime              time.Time     `json:"start_time"`
	LastUpdate             time.Time     `json:"last_update"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
}

// Snapshot is a point-in-time copy of a job. It shares no memory with the live job.
type Snapshot struct {
	ID          string        `json:"id"`
	PlaylistKey string        `json:"playlist_key,omitempty"`
	Status      JobStatus     `json:"status"`
	StopReason  StopReason    `json:"stop_reason,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Cursor      int           `json:"cursor"`
	Offset      int           `json:"offset"`
	Stats       Stats         `json:"stats"`
	Progress    Progress      `json:"progress"`
	Timing      Timing        `json:"timing"`
	Tracks      []Track       `json:"-"`
	Results     []MatchResult `json:"-"`
}

// TrackResults joins results with their tracks in index order. Indexes are relative to the
// original (unwindowed) track list.
func (s Snapshot) TrackResults() []TrackResult {
	out := make([]TrackResult, len(s.Results))
	for i, r := range s.Results {
		out[i] = TrackResult{Index: s.Offset + i, Track: s.Tracks[i], Result: r}
	}
	return out
}

// OutcomeOf maps a status, stop reason and counters to an Outcome.
func OutcomeOf(status JobStatus, reason StopReason, stats Stats) Outcome {
	switch status {
	case JobProcessing:
		return OutcomeProcessing
	case JobPaused:
		return OutcomePaused
	case JobFailed:
		return OutcomeFailed
	}

	if reason != StopNone {
		return OutcomeStoppedEarly
	}
	if stats.Failed > 0 {
		return OutcomeCompletedWithFailures
	}
	return OutcomeCompleted
}
