package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/cache"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/search"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// SkippedMessage is the LastError of a track short-circuited by the failed-query cache.
const SkippedMessage = "skipped: previously failed"

// Searcher is the bounded search call the matcher drives. [*search.Adapter] implements it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, timeout time.Duration) ([]models.Candidate, search.Outcome)
}

// MatcherConfig bounds the work spent on a single track.
type MatcherConfig struct {
	PerQueryTimeout    time.Duration
	TrackBudget        time.Duration // total across every query of the track
	MaxQueriesPerPass  int
	MaxPasses          int // 1 = primary only, 2 = primary plus advanced
	MaxResultsPerQuery int
}

// DefaultMatcherConfig returns the background-processing defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		PerQueryTimeout:    4 * time.Second,
		TrackBudget:        15 * time.Second,
		MaxQueriesPerPass:  MaxPrimaryQueries,
		MaxPasses:          2,
		MaxResultsPerQuery: 10,
	}
}

// MatchOptions alter a single Match call.
type MatchOptions struct {
	// Advanced runs the advanced query pass after an exhausted primary pass.
	Advanced bool
	// Retry marks an explicit second attempt: the failed-query cache is bypassed and only the
	// advanced pass runs.
	Retry bool
	// QueryTimeout overrides the configured per-query timeout when positive.
	QueryTimeout time.Duration
	// TrackBudget overrides the configured per-track budget when positive.
	TrackBudget time.Duration
	// MaxQueries overrides MaxQueriesPerPass when positive.
	MaxQueries int
}

// MatcherOpts wires a [Matcher]. Only the searcher is required.
type MatcherOpts struct {
	Ranker *Ranker
	Failed cache.FailedQueries
	Known  *KnownAnswers
	Config MatcherConfig
	Logger *log.Logger
}

// Matcher is the Track Matcher. It is safe for concurrent use.
type Matcher struct {
	searcher Searcher
	ranker   *Ranker
	failed   cache.FailedQueries
	known    *KnownAnswers
	cfg      MatcherConfig
	logger   *log.Logger
}

// NewMatcher creates a matcher. Zero config fields take their defaults.
func NewMatcher(searcher Searcher, opts MatcherOpts) *Matcher {
	def := DefaultMatcherConfig()
	cfg := opts.Config
	if cfg.PerQueryTimeout <= 0 {
		cfg.PerQueryTimeout = def.PerQueryTimeout
	}
	if cfg.TrackBudget <= 0 {
		cfg.TrackBudget = def.TrackBudget
	}
	if cfg.MaxQueriesPerPass <= 0 {
		cfg.MaxQueriesPerPass = def.MaxQueriesPerPass
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = def.MaxPasses
	}
	if cfg.MaxResultsPerQuery <= 0 {
		cfg.MaxResultsPerQuery = def.MaxResultsPerQuery
	}

	m := &Matcher{
		searcher: searcher,
		ranker:   opts.Ranker,
		failed:   opts.Failed,
		known:    opts.Known,
		cfg:      cfg,
		logger:   opts.Logger,
	}
	if m.ranker == nil {
		m.ranker = NewRanker(DefaultRankerConfig())
	}
	if m.failed == nil {
		m.failed = cache.Noop{}
	}
	if m.logger == nil {
		m.logger = shared.DiscardLogger()
	}
	return m
}

// Config returns the effective configuration.
func (m *Matcher) Config() MatcherConfig { return m.cfg }

// attempts tallies query outcomes for the terminal reason.
type attempts struct {
	total         int
	timeouts      int
	errors        int
	sawCandidates bool
	lastErr       string
}

func (a *attempts) reason() models.Reason {
	switch {
	case a.total > 0 && a.timeouts == a.total:
		return models.ReasonTimeout
	case a.errors+a.timeouts > 0 && !a.sawCandidates:
		return models.ReasonError
	case a.sawCandidates:
		return models.ReasonAllRejected
	default:
		return models.ReasonNoCandidates
	}
}

// Match resolves track to a [models.MatchResult]. It never panics and returns within the
// track budget plus one query timeout.
func (m *Matcher) Match(ctx context.Context, track models.Track, opts MatchOptions) (result models.MatchResult) {
	logger := m.logger.With("artist", track.Artist, "title", track.Name)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("matcher panic recovered", "panic", r)
			result = models.NewNotFound(models.ReasonError, fmt.Sprintf("panic: %v", r))
		}
	}()

	if found, ok := m.known.Lookup(track); ok {
		return models.NewFound(found)
	}

	key := shared.NormalizeTrackKey(track.Name, track.Artist)
	if !opts.Retry && m.failed.Contains(ctx, key) {
		logger.Debug("skipping previously failed track")
		return models.NewNotFound(models.ReasonTimeout, SkippedMessage)
	}

	budget := m.cfg.TrackBudget
	if opts.TrackBudget > 0 {
		budget = opts.TrackBudget
	}
	tctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	plan := GenerateQueries(track.Artist, track.Name)
	var passes [][]string
	switch {
	case opts.Retry:
		passes = [][]string{plan.Advanced}
	case opts.Advanced && m.cfg.MaxPasses > 1:
		passes = [][]string{plan.Primary, plan.Advanced}
	default:
		passes = [][]string{plan.Primary}
	}

	queryTimeout := m.cfg.PerQueryTimeout
	if opts.QueryTimeout > 0 {
		queryTimeout = opts.QueryTimeout
	}
	limit := m.cfg.MaxQueriesPerPass
	if opts.MaxQueries > 0 {
		limit = opts.MaxQueries
	}

	var tally attempts
	budgetSpent := false

queryLoop:
	for _, queries := range passes {
		if len(queries) > limit {
			queries = queries[:limit]
		}
		for _, q := range queries {
			if tctx.Err() != nil {
				budgetSpent = true
				break queryLoop
			}

			candidates, outcome := m.searcher.Search(tctx, q, m.cfg.MaxResultsPerQuery, queryTimeout)
			tally.total++

			switch {
			case outcome.Status == search.StatusTimeout:
				tally.timeouts++
				tally.lastErr = outcome.Message()
				logger.Debug("query timed out", "query", q)
				continue
			case outcome.Failed():
				tally.errors++
				tally.lastErr = outcome.Message()
				logger.Debug("query failed", "query", q, "status", outcome.Status, "err", outcome.Err)
				continue
			case len(candidates) == 0:
				logger.Debug("query returned nothing", "query", q)
				continue
			}

			tally.sawCandidates = true
			best := m.ranker.Rank(candidates, track.Artist, track.Name)
			if best == nil {
				logger.Debug("all candidates rejected", "query", q, "count", len(candidates))
				continue
			}

			logger.Debug("matched", "query", q, "video", best.Candidate.VideoID, "official", best.IsOfficial)
			return models.NewFound(models.Found{
				VideoID:      best.Candidate.VideoID,
				Title:        best.Candidate.Title,
				ChannelName:  best.Candidate.ChannelName,
				IsOfficial:   best.IsOfficial,
				MatchedQuery: q,
			})
		}
	}

	// The caller gave up on this track; that is not evidence it is unmatchable.
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.NewNotFound(models.ReasonTimeout, err.Error())
		}
		return models.NewNotFound(models.ReasonError, err.Error())
	}

	reason := tally.reason()
	lastErr := tally.lastErr
	if budgetSpent || (tctx.Err() != nil && !tally.sawCandidates) {
		reason = models.ReasonTimeout
		lastErr = fmt.Sprintf("%v: track budget %s exhausted", shared.ErrQueryTimeout, budget)
	}

	m.failed.Add(ctx, key)
	logger.Debug("track exhausted", "reason", reason, "queries", tally.total)
	return models.NewNotFound(reason, lastErr)
}
