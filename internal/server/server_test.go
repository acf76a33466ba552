package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sp2yt/internal/formatter"
	"github.com/desertthunder/sp2yt/internal/matching"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	tu "github.com/desertthunder/sp2yt/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matcherFunc func(ctx context.Context, t models.Track) models.MatchResult

func (f matcherFunc) Match(ctx context.Context, t models.Track, _ matching.MatchOptions) models.MatchResult {
	return f(ctx, t)
}

func findAll(_ context.Context, t models.Track) models.MatchResult {
	return models.NewFound(models.Found{VideoID: "v-" + t.Name, Title: t.Name, ChannelName: t.Artist})
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string][]models.TrackResult
	loads int
}

func (s *memoryStore) Save(_ context.Context, key string, results []models.TrackResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string][]models.TrackResult{}
	}
	s.saved[key] = results
	return nil
}

func (s *memoryStore) Load(_ context.Context, key string) ([]models.TrackResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	r, ok := s.saved[key]
	return r, ok, nil
}

func testProfile() tasks.Profile {
	return tasks.Profile{Name: "test", Config: tasks.BatchConfig{
		BatchSize:                   10,
		QueryTimeout:                100 * time.Millisecond,
		TrackBudget:                 500 * time.Millisecond,
		PerBatchTimeout:             2 * time.Second,
		GlobalTimeout:               10 * time.Second,
		MaxConsecutiveBatchFailures: 3,
		SalvageTimeout:              200 * time.Millisecond,
	}}
}

type fixture struct {
	registry *tasks.Registry
	source   *tu.MockTrackSource
	store    *memoryStore
	server   *httptest.Server
	client   *services.APIService
}

func newFixture(t *testing.T, m tasks.TrackMatcher) *fixture {
	t.Helper()
	store := &memoryStore{}
	source := &tu.MockTrackSource{Tracks: tu.Tracks(4)}
	registry := tasks.NewRegistry(m, tasks.RegistryOpts{Store: store, Default: testProfile().Config})

	srv := httptest.NewServer(NewRouter(Dependencies{
		Registry:     registry,
		Matcher:      m,
		Source:       source,
		Store:        store,
		Profile:      testProfile(),
		PollInterval: 10 * time.Millisecond,
	}))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Shutdown(ctx)
	})

	return &fixture{
		registry: registry,
		source:   source,
		store:    store,
		server:   srv,
		client:   services.NewAPIService(srv.URL, srv.Client()),
	}
}

func (f *fixture) wait(t *testing.T, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.registry.Wait(ctx, id))
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.server.Client().Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return e["code"].(string)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))
	assert.NoError(t, f.client.Health(context.Background()))
}

func TestCreateJob_Tracks(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))
	ctx := context.Background()

	id, err := f.client.CreateJob(ctx, services.CreateJobRequest{Tracks: tu.Tracks(3)})
	require.NoError(t, err)
	f.wait(t, id)

	snap, err := f.client.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, snap.Status)
	assert.Equal(t, models.OutcomeCompleted, snap.Outcome)
	assert.Equal(t, 3, snap.Progress.Current)

	results, err := f.client.JobResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results.Results, 3)
	assert.Equal(t, []string{"v-Song 0", "v-Song 1", "v-Song 2"}, results.MatchedIDs)
	require.Len(t, results.WatchURLs, 1)
	assert.Equal(t, formatter.WatchVideosURL+"v-Song 0,v-Song 1,v-Song 2", results.WatchURLs[0])

	_, ok := f.store.saved[""]
	assert.False(t, ok, "raw track jobs are not persisted")
}

func TestCreateJob_PlaylistWindow(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	resp, body := f.post(t, "/api/jobs", `{"playlist":"my-list","start_from":1,"max_tracks":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["tracks"])
	assert.EqualValues(t, 4, data["total_tracks"])
	assert.EqualValues(t, 1, data["start_from"])
	assert.EqualValues(t, 3, data["next_start_from"])
	assert.Equal(t, []string{"my-list"}, f.source.Refs)

	id := data["job_id"].(string)
	f.wait(t, id)

	results, err := f.client.JobResults(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, 1, results.Results[0].Index)
	assert.Equal(t, "Song 1", results.Results[0].Track.Name)
	assert.Empty(t, f.store.saved, "partial windows are not persisted")
}

func TestCreateJob_PlaylistPersisted(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	id, err := f.client.CreateJob(context.Background(), services.CreateJobRequest{Playlist: "my-list"})
	require.NoError(t, err)
	f.wait(t, id)

	saved, ok := f.store.saved["mock:my-list"]
	require.True(t, ok)
	assert.Len(t, saved, 4)
}

func TestCreateJob_Invalid(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"empty request", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"tracks and playlist", `{"playlist":"x","tracks":[{"name":"a","artist":"b"}]}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"blank track", `{"tracks":[{"name":"","artist":""}]}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown profile", `{"playlist":"x","profile":"turbo"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"window past end", `{"playlist":"x","start_from":10}`, http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(t, "/api/jobs", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, body))
		})
	}
}

func TestCreateJob_SourceErrors(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		registry := tasks.NewRegistry(matcherFunc(findAll), tasks.RegistryOpts{})
		t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })
		srv := httptest.NewServer(NewRouter(Dependencies{Registry: registry, Matcher: matcherFunc(findAll)}))
		t.Cleanup(srv.Close)

		_, err := services.NewAPIService(srv.URL, srv.Client()).
			CreateJob(context.Background(), services.CreateJobRequest{Playlist: "x"})
		var apiErr *services.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	})

	t.Run("playlist not found", func(t *testing.T) {
		f := newFixture(t, matcherFunc(findAll))
		f.source.Err = shared.ErrPlaylistNotFound

		resp, body := f.post(t, "/api/jobs", `{"playlist":"gone"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "PLAYLIST_NOT_FOUND", errorCode(t, body))
	})
}

func TestJobs_UnknownID(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))
	ctx := context.Background()

	_, err := f.client.JobStatus(ctx, "job_missing")
	assert.ErrorIs(t, err, shared.ErrJobNotFound)
	_, err = f.client.JobResults(ctx, "job_missing")
	assert.ErrorIs(t, err, shared.ErrJobNotFound)
	assert.ErrorIs(t, f.client.PauseJob(ctx, "job_missing"), shared.ErrJobNotFound)
	assert.ErrorIs(t, f.client.ResumeJob(ctx, "job_missing"), shared.ErrJobNotFound)
	assert.ErrorIs(t, f.client.DeleteJob(ctx, "job_missing"), shared.ErrJobNotFound)
}

func TestJobs_PauseResumeDelete(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	m := matcherFunc(func(ctx context.Context, tr models.Track) models.MatchResult {
		if tr.Name == "Song 0" {
			once.Do(func() {
				close(entered)
				select {
				case <-release:
				case <-ctx.Done():
				}
			})
		}
		return findAll(ctx, tr)
	})
	f := newFixture(t, m)
	ctx := context.Background()

	id, err := f.client.CreateJob(ctx, services.CreateJobRequest{Tracks: tu.Tracks(3)})
	require.NoError(t, err)
	<-entered

	assert.ErrorIs(t, f.client.ResumeJob(ctx, id), shared.ErrInvalidTransition)
	require.NoError(t, f.client.PauseJob(ctx, id))
	assert.ErrorIs(t, f.client.PauseJob(ctx, id), shared.ErrInvalidTransition)

	close(release)
	require.NoError(t, f.client.ResumeJob(ctx, id))
	f.wait(t, id)

	snap, err := f.client.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, snap.Status)

	jobs, err := f.client.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, f.client.DeleteJob(ctx, id))
	_, err = f.client.JobStatus(ctx, id)
	assert.ErrorIs(t, err, shared.ErrJobNotFound)
}

func TestConvert(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	resp, body := f.post(t, "/api/convert", `{"playlist":"my-list"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["cached"])
	assert.Equal(t, string(models.JobCompleted), data["status"])
	assert.Len(t, data["matched_ids"], 4)
	require.Contains(t, f.store.saved, "mock:my-list")

	resp, body = f.post(t, "/api/convert", `{"playlist":"my-list"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Equal(t, true, data["cached"])
	assert.Len(t, data["matched_ids"], 4)
	assert.Len(t, f.source.Refs, 2)
}

func TestConvert_Tracks(t *testing.T) {
	f := newFixture(t, matcherFunc(func(_ context.Context, tr models.Track) models.MatchResult {
		if tr.Name == "Song 1" {
			return models.NewNotFound(models.ReasonNoCandidates, "")
		}
		return models.NewFound(models.Found{VideoID: "v-" + tr.Name})
	}))

	resp, body := f.post(t, "/api/convert", `{"tracks":[{"name":"Song 0","artist":"A"},{"name":"Song 1","artist":"B"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"v-Song 0"}, data["matched_ids"])
	assert.Empty(t, f.store.saved)
}

func TestEvents(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	id, err := f.client.CreateJob(context.Background(), services.CreateJobRequest{Tracks: tu.Tracks(2)})
	require.NoError(t, err)

	resp, err := f.server.Client().Get(f.server.URL + "/api/jobs/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	var last models.Snapshot
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last))
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, "done", events[len(events)-1])
	assert.Equal(t, models.JobCompleted, last.Status)
}

func TestEvents_UnknownJob(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	resp, err := f.server.Client().Get(f.server.URL + "/api/jobs/job_missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_NotFound(t *testing.T) {
	f := newFixture(t, matcherFunc(findAll))

	resp, err := f.server.Client().Get(f.server.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestRecovery(t *testing.T) {
	h := Recovery(shared.DiscardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRun_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), nil) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
