package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/sp2yt/internal/formatter"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	"github.com/go-chi/chi/v5"
)

type handlers struct {
	deps Dependencies
}

type createJobResponse struct {
	JobID         string `json:"job_id"`
	Tracks        int    `json:"tracks"`
	TotalTracks   int    `json:"total_tracks"`
	StartFrom     int    `json:"start_from"`
	NextStartFrom int    `json:"next_start_from,omitempty"`
}

type convertResponse struct {
	formatter.Report
	Status     models.JobStatus  `json:"status"`
	StopReason models.StopReason `json:"stop_reason,omitempty"`
	Cached     bool              `json:"cached"`
}

func decode(r *http.Request, req *services.CreateJobRequest) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: invalid JSON body", shared.ErrInvalidInput)
	}
	return nil
}

func (h *handlers) profile(name string, def tasks.Profile) (tasks.Profile, error) {
	if name == "" {
		return def, nil
	}
	return tasks.ProfileByName(name)
}

// resolveTracks returns the request's tracks and, for playlist references, their persistence key.
func (h *handlers) resolveTracks(ctx context.Context, req services.CreateJobRequest) ([]models.Track, string, error) {
	switch {
	case len(req.Tracks) > 0 && req.Playlist != "":
		return nil, "", fmt.Errorf("%w: provide tracks or playlist, not both", shared.ErrInvalidInput)
	case len(req.Tracks) > 0:
		for i, t := range req.Tracks {
			if t.Name == "" && t.Artist == "" {
				return nil, "", fmt.Errorf("%w: track %d has no name or artist", shared.ErrInvalidInput, i)
			}
		}
		return req.Tracks, "", nil
	case req.Playlist != "":
		if h.deps.Source == nil {
			return nil, "", fmt.Errorf("%w: no track source configured", shared.ErrServiceUnavailable)
		}
		tracks, err := h.deps.Source.FetchTracks(ctx, req.Playlist)
		if err != nil {
			return nil, "", err
		}
		return tracks, services.PlaylistKey(h.deps.Source, req.Playlist), nil
	default:
		return nil, "", fmt.Errorf("%w: tracks or playlist is required", shared.ErrMissingArgument)
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, map[string]any{"status": "ok", "jobs": len(h.deps.Registry.List())})
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req services.CreateJobRequest
	if err := decode(r, &req); err != nil {
		Fail(w, err)
		return
	}

	profile, err := h.profile(req.Profile, h.deps.Profile)
	if err != nil {
		Fail(w, err)
		return
	}

	tracks, key, err := h.resolveTracks(r.Context(), req)
	if err != nil {
		Fail(w, err)
		return
	}

	cfg := profile.Config
	if req.Advanced {
		cfg.Advanced = true
	}
	maxTracks := req.MaxTracks
	if maxTracks == 0 {
		maxTracks = profile.Window
	}

	window, err := tasks.Window(tracks, req.StartFrom, maxTracks)
	if err != nil {
		Fail(w, err)
		return
	}
	if len(window) != len(tracks) {
		key = ""
	}

	id, err := h.deps.Registry.CreateWindow(tracks, req.StartFrom, maxTracks, tasks.JobOptions{Config: cfg, PlaylistKey: key})
	if err != nil {
		Fail(w, err)
		return
	}

	resp := createJobResponse{
		JobID:       id,
		Tracks:      len(window),
		TotalTracks: len(tracks),
		StartFrom:   req.StartFrom,
	}
	if next := req.StartFrom + len(window); next < len(tracks) {
		resp.NextStartFrom = next
	}
	h.deps.Logger.Info("job accepted", "job", id, "profile", profile.Name, "tracks", len(window), "total", len(tracks))
	Accepted(w, resp)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	JSON(w, h.deps.Registry.List())
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, snap)
}

func (h *handlers) getResults(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, err)
		return
	}

	results := snap.TrackResults()
	ids := formatter.MatchedIDs(results)
	JSON(w, services.JobResults{
		ID:         snap.ID,
		Status:     snap.Status,
		Outcome:    snap.Outcome,
		Results:    results,
		MatchedIDs: ids,
		WatchURLs:  formatter.WatchURLs(ids, formatter.MaxWatchIDs),
	})
}

func (h *handlers) control(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		Fail(w, err)
		return
	}
	snap, err := h.deps.Registry.Get(id)
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, snap)
}

func (h *handlers) pauseJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.deps.Registry.Pause)
}

func (h *handlers) resumeJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.deps.Registry.Resume)
}

func (h *handlers) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Registry.Delete(id); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, map[string]any{"id": id, "deleted": true})
}

// convert runs a whole conversion inside the request under the fast profile's global deadline.
func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	var req services.CreateJobRequest
	if err := decode(r, &req); err != nil {
		Fail(w, err)
		return
	}

	profile, err := h.profile(req.Profile, tasks.FastProfile())
	if err != nil {
		Fail(w, err)
		return
	}

	tracks, key, err := h.resolveTracks(r.Context(), req)
	if err != nil {
		Fail(w, err)
		return
	}
	window, err := tasks.Window(tracks, req.StartFrom, req.MaxTracks)
	if err != nil {
		Fail(w, err)
		return
	}
	if len(window) != len(tracks) {
		key = ""
	}

	name := req.Playlist
	if name == "" {
		name = "tracks"
	}

	if key != "" && h.deps.Store != nil {
		results, ok, err := h.deps.Store.Load(r.Context(), key)
		if err != nil {
			h.deps.Logger.Warn("failed to load cached conversion", "key", key, "error", err)
		} else if ok {
			h.deps.Logger.Info("serving cached conversion", "key", key, "tracks", len(results))
			JSON(w, convertResponse{Report: formatter.ReportFromResults(name, results), Status: models.JobCompleted, Cached: true})
			return
		}
	}

	cfg := profile.Config
	if req.Advanced {
		cfg.Advanced = true
	}

	start := time.Now()
	snap := tasks.NewOrchestrator(h.deps.Matcher, cfg, h.deps.Logger).Run(r.Context(), window, nil)
	snap.Offset = req.StartFrom
	h.deps.Logger.Info("conversion finished", "tracks", len(window), "found", snap.Stats.Found, "outcome", snap.Outcome, "elapsed", time.Since(start))

	if key != "" && h.deps.Store != nil && snap.Status == models.JobCompleted && snap.StopReason == models.StopNone {
		if err := h.deps.Store.Save(r.Context(), key, snap.TrackResults()); err != nil {
			h.deps.Logger.Error("failed to save conversion", "key", key, "error", err)
		}
	}

	JSON(w, convertResponse{Report: formatter.NewReport(name, snap), Status: snap.Status, StopReason: snap.StopReason})
}

// events streams job snapshots as server-sent events until the job stops processing.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.deps.Registry.Get(id)
	if err != nil {
		Fail(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	ticker := time.NewTicker(h.deps.PollInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		if !snap.Timing.LastUpdate.Equal(last) {
			last = snap.Timing.LastUpdate
			send("progress", snap)
		}
		if snap.Status != models.JobProcessing {
			send("done", snap)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if snap, err = h.deps.Registry.Get(id); err != nil {
			status, code := classify(err)
			send("error", map[string]any{"status": status, "code": code, "message": err.Error()})
			return
		}
	}
}
