// package search wraps the external video search in a total, bounded call.
//
// [Adapter.Search] always returns within the requested timeout, never panics and always
// returns a non-nil slice. Failures are classified in the returned [Outcome] so callers can
// tell "no results" apart from "search failed".
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 5 * time.Second

// Status is the failure class of one query attempt.
type Status string

const (
	StatusOK       Status = "ok"
	StatusEmpty    Status = "empty"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
	StatusRedirect Status = "redirect"
)

// Outcome describes how a query attempt ended. Err is nil for ok and empty.
type Outcome struct {
	Status Status
	Err    error
}

// Failed reports whether the search itself failed, as opposed to answering with or without results.
func (o Outcome) Failed() bool {
	return o.Status == StatusTimeout || o.Status == StatusError || o.Status == StatusRedirect
}

// Message renders Err for storage in a NotFound result.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Options configures an [Adapter]. A RateLimit of zero disables pacing.
type Options struct {
	RateLimit float64 // requests per second
	Burst     int
	Logger    *log.Logger
}

// Adapter is the Candidate Search Adapter.
type Adapter struct {
	backend services.Searcher
	limiter *rate.Limiter
	logger  *log.Logger

	mu         sync.Mutex
	redirected map[string]struct{}
}

// New wraps backend.
func New(backend services.Searcher, opts Options) *Adapter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	return &Adapter{
		backend:    backend,
		limiter:    limiter,
		logger:     opts.Logger,
		redirected: make(map[string]struct{}),
	}
}

type backendResult struct {
	videos []services.RawVideo
	err    error
}

// Search issues query against the backend, waiting at most timeout (including time spent
// waiting on the rate limiter). A non-positive timeout uses [DefaultTimeout].
//
// A query that once produced a redirect is never sent again; later calls return
// [StatusRedirect] immediately.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int, timeout time.Duration) ([]models.Candidate, Outcome) {
	if a.isRedirected(query) {
		return []models.Candidate{}, Outcome{Status: StatusRedirect, Err: shared.ErrRedirect}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.limiter.Wait(qctx); err != nil {
		return []models.Candidate{}, a.classifyCtx(ctx, qctx)
	}

	// Buffered so an abandoned backend call can still deliver and exit.
	done := make(chan backendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- backendResult{err: fmt.Errorf("search backend panic: %v", r)}
			}
		}()
		videos, err := a.backend.Search(qctx, query, maxResults)
		done <- backendResult{videos: videos, err: err}
	}()

	select {
	case res := <-done:
		return a.finish(query, res, maxResults)
	case <-qctx.Done():
		a.logger.Debug("search abandoned", "query", query, "err", qctx.Err())
		return []models.Candidate{}, a.classifyCtx(ctx, qctx)
	}
}

func (a *Adapter) finish(query string, res backendResult, maxResults int) ([]models.Candidate, Outcome) {
	if res.err != nil {
		switch {
		case errors.Is(res.err, shared.ErrRedirect):
			a.markRedirected(query)
			return []models.Candidate{}, Outcome{Status: StatusRedirect, Err: res.err}
		case errors.Is(res.err, context.DeadlineExceeded):
			return []models.Candidate{}, Outcome{Status: StatusTimeout, Err: fmt.Errorf("%w: %v", shared.ErrQueryTimeout, res.err)}
		default:
			return []models.Candidate{}, Outcome{Status: StatusError, Err: res.err}
		}
	}

	candidates := Normalize(res.videos, maxResults)
	if len(candidates) == 0 {
		return candidates, Outcome{Status: StatusEmpty}
	}
	return candidates, Outcome{Status: StatusOK}
}

// classifyCtx maps a finished query context to an outcome. Cancellation by the caller is an
// error, not a timeout.
func (a *Adapter) classifyCtx(parent, qctx context.Context) Outcome {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return Outcome{Status: StatusError, Err: parent.Err()}
	}
	return Outcome{Status: StatusTimeout, Err: shared.ErrQueryTimeout}
}

func (a *Adapter) isRedirected(query string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.redirected[query]
	return ok
}

func (a *Adapter) markRedirected(query string) {
	a.mu.Lock()
	a.redirected[query] = struct{}{}
	a.mu.Unlock()
	a.logger.Warn("search redirected, query retired", "query", query)
}

// Normalize converts raw videos into candidates, dropping entries without a video id and
// truncating to maxResults (when positive). The result is never nil.
func Normalize(videos []services.RawVideo, maxResults int) []models.Candidate {
	candidates := make([]models.Candidate, 0, len(videos))
	for _, v := range videos {
		if v.ID == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			VideoID:      v.ID,
			Title:        v.Title,
			ChannelName:  v.Channel,
			Description:  v.Description,
			PublishedAt:  v.PublishedAt,
			ThumbnailURL: v.Thumbnail,
		})
		if maxResults > 0 && len(candidates) == maxResults {
			break
		}
	}
	return candidates
}
