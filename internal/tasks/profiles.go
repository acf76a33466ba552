package tasks

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/sp2yt/internal/shared"
)

// BatchConfig parameterises the orchestrator. Timeouts nest:
// QueryTimeout < TrackBudget < PerBatchTimeout < GlobalTimeout.
type BatchConfig struct {
	BatchSize                   int
	QueryTimeout                time.Duration
	TrackBudget                 time.Duration
	PerBatchTimeout             time.Duration
	GlobalTimeout               time.Duration // zero disables
	MaxConsecutiveBatchFailures int
	InterBatchDelay             time.Duration
	FailedBatchDelay            time.Duration
	SalvageTimeout              time.Duration
	Advanced                    bool // run the advanced query pass inside each track's budget
	AdvancedRetry               bool // retry no_candidates/all_rejected tracks after the sweep
}

// Profile is a named BatchConfig. Window, when set, is the default maxTracks for chunked runs.
type Profile struct {
	Name   string
	Config BatchConfig
	Window int
}

// FastProfile answers within a single request: wide batches and a hard global deadline.
func FastProfile() Profile {
	return Profile{Name: "fast", Config: BatchConfig{
		BatchSize:                   50,
		QueryTimeout:                2 * time.Second,
		TrackBudget:                 6 * time.Second,
		PerBatchTimeout:             8 * time.Second,
		GlobalTimeout:               30 * time.Second,
		MaxConsecutiveBatchFailures: 2,
		SalvageTimeout:              2 * time.Second,
	}}
}

// BackgroundProfile trades latency for recall on asynchronous jobs.
func BackgroundProfile() Profile {
	return Profile{Name: "background", Config: BatchConfig{
		BatchSize:                   20,
		QueryTimeout:                4 * time.Second,
		TrackBudget:                 15 * time.Second,
		PerBatchTimeout:             25 * time.Second,
		MaxConsecutiveBatchFailures: 3,
		InterBatchDelay:             500 * time.Millisecond,
		FailedBatchDelay:            100 * time.Millisecond,
		SalvageTimeout:              3 * time.Second,
		AdvancedRetry:               true,
	}}
}

// PagedProfile processes a large playlist in externally paginated windows.
func PagedProfile() Profile {
	return Profile{Name: "paged", Window: 100, Config: BatchConfig{
		BatchSize:                   25,
		QueryTimeout:                3 * time.Second,
		TrackBudget:                 10 * time.Second,
		PerBatchTimeout:             15 * time.Second,
		MaxConsecutiveBatchFailures: 3,
		InterBatchDelay:             250 * time.Millisecond,
		FailedBatchDelay:            50 * time.Millisecond,
		SalvageTimeout:              2 * time.Second,
	}}
}

// Profiles lists the built-in profiles.
func Profiles() []Profile {
	return []Profile{FastProfile(), BackgroundProfile(), PagedProfile()}
}

// ProfileByName looks up a built-in profile, case-insensitively.
func ProfileByName(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BackgroundProfile(), nil
	}
	for _, p := range Profiles() {
		if p.Name == name {
			return p, nil
		}
	}
	names := []string{}
	for _, p := range Profiles() {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return Profile{}, fmt.Errorf("%w: unknown profile %q (want one of %s)", shared.ErrInvalidArgument, name, strings.Join(names, ", "))
}

// withDefaults fills unset fields from the background profile.
func (c BatchConfig) withDefaults() BatchConfig {
	def := BackgroundProfile().Config
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.PerBatchTimeout <= 0 {
		c.PerBatchTimeout = def.PerBatchTimeout
	}
	if c.MaxConsecutiveBatchFailures <= 0 {
		c.MaxConsecutiveBatchFailures = def.MaxConsecutiveBatchFailures
	}
	if c.SalvageTimeout <= 0 {
		c.SalvageTimeout = def.SalvageTimeout
	}
	return c
}
