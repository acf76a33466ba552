// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
)

// Step scripts how [ScriptedSearcher] answers a query.
type Step struct {
	Videos []services.RawVideo
	Err    error
	Delay  time.Duration // sleep before answering; ctx cancellation cuts it short unless Hang is set
	Hang   bool          // block until the test ends, ignoring ctx
	Panic  bool
}

// ScriptedSearcher is a [services.Searcher] double whose answers are looked up per query.
//
// Queries without a script get Default. Calls are recorded in order.
type ScriptedSearcher struct {
	Scripts map[string]Step
	Default Step

	mu      sync.Mutex
	calls   []string
	release chan struct{}
}

// NewScriptedSearcher creates a searcher with the given scripts.
// Hanging calls are released when the test finishes.
func NewScriptedSearcher(t *testing.T, scripts map[string]Step, def Step) *ScriptedSearcher {
	s := &ScriptedSearcher{Scripts: scripts, Default: def, release: make(chan struct{})}
	if t != nil {
		t.Cleanup(func() { close(s.release) })
	}
	return s
}

func (s *ScriptedSearcher) Search(ctx context.Context, query string, maxResults int) ([]services.RawVideo, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	step, ok := s.Scripts[query]
	s.mu.Unlock()
	if !ok {
		step = s.Default
	}

	if step.Hang {
		<-s.release
		return nil, errors.New("released")
	}
	if step.Panic {
		panic("scripted searcher panic: " + query)
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}

	videos := step.Videos
	if maxResults > 0 && len(videos) > maxResults {
		videos = videos[:maxResults]
	}
	return videos, nil
}

// Calls returns a copy of the queries seen so far.
func (s *ScriptedSearcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many searches were issued.
func (s *ScriptedSearcher) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Video builds a [services.RawVideo] with the given id, title and channel.
func Video(id, title, channel string) services.RawVideo {
	return services.RawVideo{ID: id, Title: title, Channel: channel}
}

// MockTrackSource is a [services.TrackSource] returning fixed tracks or an error.
type MockTrackSource struct {
	Tracks []models.Track
	Err    error
	Refs   []string
}

func (m *MockTrackSource) FetchTracks(ctx context.Context, playlistRef string) ([]models.Track, error) {
	m.Refs = append(m.Refs, playlistRef)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]models.Track(nil), m.Tracks...), nil
}

func (m *MockTrackSource) Name() string { return "mock" }

// Tracks builds n distinct tracks named "Song i" by "Artist i".
func Tracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{Name: fmt.Sprintf("Song %d", i), Artist: fmt.Sprintf("Artist %d", i)}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
