package tasks

import (
	"fmt"

	"github.com/desertthunder/sp2yt/internal/models"
)

// ProgressUpdate represents a progress event during a long-running job.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	JobID   string
	Phase   Phase           // Operation phase
	Step    int             // Tracks processed so far
	Total   int             // Tracks in the job
	Message string          // Human-readable message for display
	Data    models.Snapshot // Job state right after the event
}

// Operation phase enumeration
type Phase int

const (
	FetchTracks Phase = iota
	MatchBatch
	Salvage
	RetryPass
	Finished
	Stopped
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchTracks:
		return "fetch_tracks"
	case MatchBatch:
		return "match_batch"
	case Salvage:
		return "salvage"
	case RetryPass:
		return "retry_pass"
	case Finished:
		return "finished"
	case Stopped:
		return "stopped"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

// sendProgress delivers update without blocking; a full channel drops it.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FetchTracksUpdate is emitted by callers before a job exists.
func FetchTracksUpdate(source, ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Message: fmt.Sprintf("Fetching tracks from %s (%s)...", source, ref),
	}
}

func batchUpdate(snap models.Snapshot, batch, size int, timedOut bool) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] batch %d: %d tracks, %d found so far", snap.Cursor, len(snap.Tracks), batch, size, snap.Stats.Found)
	if timedOut {
		msg += " (deadline hit, salvaged)"
	}
	return ProgressUpdate{
		JobID:   snap.ID,
		Phase:   MatchBatch,
		Step:    snap.Cursor,
		Total:   len(snap.Tracks),
		Message: msg,
		Data:    snap,
	}
}

func salvageUpdate(snap models.Snapshot, pending int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   snap.ID,
		Phase:   Salvage,
		Step:    snap.Cursor,
		Total:   len(snap.Tracks),
		Message: fmt.Sprintf("Batch deadline exceeded, salvaging %d tracks...", pending),
		Data:    snap,
	}
}

func retryUpdate(snap models.Snapshot, candidates int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   snap.ID,
		Phase:   RetryPass,
		Step:    snap.Cursor,
		Total:   len(snap.Tracks),
		Message: fmt.Sprintf("Retrying %d unmatched tracks with broader queries...", candidates),
		Data:    snap,
	}
}

func finishedUpdate(snap models.Snapshot) ProgressUpdate {
	return ProgressUpdate{
		JobID:   snap.ID,
		Phase:   Finished,
		Step:    snap.Cursor,
		Total:   len(snap.Tracks),
		Message: fmt.Sprintf("Done: %d/%d found (%.1f%%)", snap.Stats.Found, snap.Stats.Total, snap.Stats.SuccessRate()),
		Data:    snap,
	}
}

func stoppedUpdate(snap models.Snapshot, reason string) ProgressUpdate {
	return ProgressUpdate{
		JobID:   snap.ID,
		Phase:   Stopped,
		Step:    snap.Cursor,
		Total:   len(snap.Tracks),
		Message: fmt.Sprintf("Stopped early: %s", reason),
		Data:    snap,
	}
}

func exportDoneUpdate(step, total int, res PlaylistConversionResult) ProgressUpdate {
	msg := fmt.Sprintf("Exported %s: %d/%d found", res.Name, res.Stats.Found, res.Stats.Total)
	if !res.Success {
		msg = fmt.Sprintf("Failed %s: %s", res.Name, res.ErrorMessage)
	}
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}
