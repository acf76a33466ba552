package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected trimmed baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Defaults", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != defaultAPIBaseURL {
				t.Errorf("expected default baseURL %s, got %s", defaultAPIBaseURL, srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("CreateJob", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}

			var body CreateJobRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if len(body.Tracks) != 1 || body.Profile != "paged" || body.StartFrom != 25 {
				t.Errorf("unexpected body: %+v", body)
			}

			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data":{"job_id":"job_1_abc"}}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, nil)
		id, err := srv.CreateJob(context.Background(), CreateJobRequest{
			Tracks:    []models.Track{{Name: "Yellow", Artist: "Coldplay"}},
			Profile:   "paged",
			StartFrom: 25,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "job_1_abc" {
			t.Errorf("expected job id job_1_abc, got %s", id)
		}
	})

	t.Run("JobStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/jobs/job_9" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"data":{"id":"job_9","status":"paused","outcome":"paused","cursor":3,"stats":{"total":10,"processed":3,"found":2,"failed":1}}}`))
		}))
		defer server.Close()

		snap, err := NewAPIService(server.URL, nil).JobStatus(context.Background(), "job_9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snap.Status != models.JobPaused || snap.Cursor != 3 || snap.Stats.Found != 2 {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})

	t.Run("JobResults", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"id":"job_9","status":"completed","outcome":"completed_with_failures",
				"results":[
					{"index":0,"track":{"name":"A","artist":"B"},"result":{"status":"found","video_id":"vid1","title":"t","channel_name":"c","is_official":true,"matched_query":"B A"}},
					{"index":1,"track":{"name":"C","artist":"D"},"result":{"status":"not_found","reason":"timeout"}}
				],
				"watch_urls":["https://www.youtube.com/watch_videos?video_ids=vid1"]}}`))
		}))
		defer server.Close()

		res, err := NewAPIService(server.URL, nil).JobResults(context.Background(), "job_9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(res.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(res.Results))
		}
		if res.Results[0].Result.VideoID() != "vid1" {
			t.Errorf("expected vid1, got %q", res.Results[0].Result.VideoID())
		}
		if res.Results[1].Result.Reason() != models.ReasonTimeout {
			t.Errorf("expected timeout reason, got %q", res.Results[1].Result.Reason())
		}
		if len(res.WatchURLs) != 1 {
			t.Errorf("expected one watch url, got %v", res.WatchURLs)
		}
	})

	t.Run("Error Envelope", func(t *testing.T) {
		tests := []struct {
			name     string
			status   int
			body     string
			sentinel error
		}{
			{"Job Not Found", http.StatusNotFound, `{"error":{"code":"JOB_NOT_FOUND","message":"no such job"}}`, shared.ErrJobNotFound},
			{"Invalid Transition", http.StatusConflict, `{"error":{"code":"INVALID_TRANSITION","message":"job is completed"}}`, shared.ErrInvalidTransition},
			{"Unstructured", http.StatusBadGateway, `upstream down`, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				err := NewAPIService(server.URL, nil).PauseJob(context.Background(), "job_1")
				if !errors.Is(err, tt.sentinel) {
					t.Errorf("expected %v, got %v", tt.sentinel, err)
				}

				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
					t.Errorf("expected APIError with status %d, got %v", tt.status, err)
				}
			})
		}
	})

	t.Run("Server Unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		err := NewAPIService(url, nil).Health(context.Background())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Delete And Resume Methods", func(t *testing.T) {
		var seen []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Method+" "+r.URL.Path)
			w.Write([]byte(`{"data":{"ok":true}}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, nil)
		if err := srv.ResumeJob(context.Background(), "job_2"); err != nil {
			t.Fatalf("resume: %v", err)
		}
		if err := srv.DeleteJob(context.Background(), "job_2"); err != nil {
			t.Fatalf("delete: %v", err)
		}

		want := []string{"POST /api/jobs/job_2/resume", "DELETE /api/jobs/job_2"}
		if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
			t.Errorf("expected %v, got %v", want, seen)
		}
	})
}
