package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/sp2yt/internal/matching"
	"github.com/desertthunder/sp2yt/internal/models"
)

func foundFor(t models.Track) models.MatchResult {
	return models.NewFound(models.Found{VideoID: "v-" + t.Name, Title: t.String(), ChannelName: t.Artist})
}

// fakeMatcher records every call and answers with fn, or a deterministic Found when fn is nil.
type fakeMatcher struct {
	fn func(ctx context.Context, t models.Track, opts matching.MatchOptions) models.MatchResult

	mu    sync.Mutex
	calls []models.Track
	opts  []matching.MatchOptions
}

func (f *fakeMatcher) Match(ctx context.Context, t models.Track, opts matching.MatchOptions) models.MatchResult {
	f.mu.Lock()
	f.calls = append(f.calls, t)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if f.fn == nil {
		return foundFor(t)
	}
	return f.fn(ctx, t, opts)
}

func (f *fakeMatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeMatcher) retries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.opts {
		if o.Retry {
			n++
		}
	}
	return n
}

func testConfig() BatchConfig {
	return BatchConfig{
		BatchSize:                   50,
		QueryTimeout:                100 * time.Millisecond,
		TrackBudget:                 500 * time.Millisecond,
		PerBatchTimeout:             2 * time.Second,
		MaxConsecutiveBatchFailures: 3,
		SalvageTimeout:              50 * time.Millisecond,
	}
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func phases(updates []ProgressUpdate, phase Phase) []ProgressUpdate {
	var out []ProgressUpdate
	for _, u := range updates {
		if u.Phase == phase {
			out = append(out, u)
		}
	}
	return out
}
