// HTTP client for a running sp2yt server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

const defaultAPIBaseURL = "http://127.0.0.1:3000"

// APIService talks to the job control surface exposed by `sp2yt serve`.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a client for the server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIError is the error envelope returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// Unwrap maps server error codes back onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "JOB_NOT_FOUND":
		return shared.ErrJobNotFound
	case "INVALID_TRANSITION":
		return shared.ErrInvalidTransition
	case "INVALID_INPUT":
		return shared.ErrInvalidInput
	}
	return shared.ErrAPIRequest
}

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	Tracks    []models.Track `json:"tracks,omitempty"`
	Playlist  string         `json:"playlist,omitempty"`
	Profile   string         `json:"profile,omitempty"`
	StartFrom int            `json:"start_from,omitempty"`
	MaxTracks int            `json:"max_tracks,omitempty"`
	Advanced  bool           `json:"advanced,omitempty"`
}

// JobResults is the payload of GET /api/jobs/{id}/results.
type JobResults struct {
	ID         string               `json:"id"`
	Status     models.JobStatus     `json:"status"`
	Outcome    models.Outcome       `json:"outcome"`
	Results    []models.TrackResult `json:"results"`
	MatchedIDs []string             `json:"matched_ids"`
	WatchURLs  []string             `json:"watch_urls"`
}

// do sends a request and decodes the {"data": ...} envelope into out. A nil out discards the body.
func (a *APIService) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == nil {
			return &APIError{StatusCode: resp.StatusCode, Code: "HTTP_ERROR", Message: strings.TrimSpace(string(raw))}
		}
		envelope.Error.StatusCode = resp.StatusCode
		return envelope.Error
	}

	if out == nil {
		return nil
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateJob submits a new asynchronous job and returns its id.
func (a *APIService) CreateJob(ctx context.Context, req CreateJobRequest) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// ListJobs returns snapshots of every job the server knows.
func (a *APIService) ListJobs(ctx context.Context) ([]models.Snapshot, error) {
	var out []models.Snapshot
	if err := a.do(ctx, http.MethodGet, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JobStatus polls a single job.
func (a *APIService) JobStatus(ctx context.Context, id string) (*models.Snapshot, error) {
	var out models.Snapshot
	if err := a.do(ctx, http.MethodGet, "/api/jobs/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobResults fetches per-track results for a job.
func (a *APIService) JobResults(ctx context.Context, id string) (*JobResults, error) {
	var out JobResults
	if err := a.do(ctx, http.MethodGet, "/api/jobs/"+id+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PauseJob pauses a processing job.
func (a *APIService) PauseJob(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/api/jobs/"+id+"/pause", nil, nil)
}

// ResumeJob resumes a paused job.
func (a *APIService) ResumeJob(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/api/jobs/"+id+"/resume", nil, nil)
}

// DeleteJob cancels and removes a job.
func (a *APIService) DeleteJob(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/jobs/"+id, nil, nil)
}

// Health reports whether the server answers its health check.
func (a *APIService) Health(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/api/health", nil, nil)
}
