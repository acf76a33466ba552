package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/cache"
	"github.com/desertthunder/sp2yt/internal/matching"
	"github.com/desertthunder/sp2yt/internal/repositories"
	"github.com/desertthunder/sp2yt/internal/search"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators that need network access or a database are built on first use so that commands
// which never touch them (queries, jobs) work without credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	mu       sync.Mutex
	searcher services.Searcher
	spotify  services.TrackSource
	failed   cache.FailedQueries
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	Searcher services.Searcher    // defaults to the YouTube results-page scraper
	Spotify  services.TrackSource // defaults to the client-credentials Spotify source
	Failed   cache.FailedQueries  // defaults to Redis when configured, else in-memory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = newAPIService(opts.Config, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		searcher:   opts.Searcher,
		spotify:    opts.Spotify,
		failed:     opts.Failed,
	}
}

// SetLogger replaces the runner's logger, e.g. to redirect logs away from the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, convertCommand, bulkCommand, searchCommand, queriesCommand, serveCommand, jobsCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) searchAdapter() *search.Adapter {
	r.mu.Lock()
	if r.searcher == nil {
		yt := r.config.YouTube
		r.searcher = services.NewYouTubeScraper(yt.SearchURL, yt.UserAgent)
	}
	backend := r.searcher
	r.mu.Unlock()

	return search.New(backend, search.Options{
		RateLimit: r.config.YouTube.RateLimit,
		Burst:     r.config.YouTube.Burst,
		Logger:    shared.WithLogger(r.logger, "component", "search"),
	})
}

// failedCache returns the failed-query cache, preferring Redis when a URL is configured.
// An unreachable Redis falls back to an in-process cache.
func (r *Runner) failedCache(ctx context.Context) cache.FailedQueries {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed != nil {
		return r.failed
	}

	ttl := r.config.Matching.FailedTTL.Duration
	if url := r.config.Redis.URL; url != "" {
		if ttl == 0 {
			ttl = r.config.Redis.TTL.Duration
		}
		rc, err := cache.NewRedis(url, ttl, shared.WithLogger(r.logger, "component", "cache"))
		if err == nil {
			err = rc.Ping(ctx)
		}
		if err == nil {
			r.failed = rc
			return r.failed
		}
		r.logger.Warn("redis unavailable, using in-memory failed-query cache", "error", err)
	}

	r.failed = cache.NewMemory(ttl)
	return r.failed
}

func (r *Runner) ranker() *matching.Ranker {
	m := r.config.Matching
	return matching.NewRanker(matching.RankerConfig{
		OfficialThreshold:   m.OfficialThreshold,
		FallbackToFirst:     m.FallbackToFirst,
		SimilarityThreshold: m.Similarity,
	})
}

// matcher wires the search adapter, ranker, known answers and failed-query cache.
func (r *Runner) matcher(ctx context.Context) (*matching.Matcher, error) {
	var known *matching.KnownAnswers
	if path := r.config.Matching.KnownAnswersPath; path != "" {
		var err error
		if known, err = matching.LoadKnownAnswers(path); err != nil {
			return nil, err
		}
	}

	return matching.NewMatcher(r.searchAdapter(), matching.MatcherOpts{
		Ranker: r.ranker(),
		Failed: r.failedCache(ctx),
		Known:  known,
		Logger: shared.WithLogger(r.logger, "component", "matcher"),
	}), nil
}

// trackSource returns the file source when fromFile is set, else Spotify.
func (r *Runner) trackSource(ctx context.Context, fromFile bool) (services.TrackSource, error) {
	if fromFile {
		return services.FileTrackSource{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spotify != nil {
		return r.spotify, nil
	}

	creds := r.config.Credentials.Spotify
	svc, err := services.NewSpotifyService(ctx, services.SpotifyOpts{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	})
	if err != nil {
		return nil, err
	}
	r.spotify = svc
	return r.spotify, nil
}

// profile resolves name, falling back to the configured default.
func (r *Runner) profile(name string) (tasks.Profile, error) {
	if name == "" {
		name = r.config.Jobs.Profile
	}
	return tasks.ProfileByName(name)
}

// openStore opens and migrates the configured database.
func (r *Runner) openStore(ctx context.Context) (*repositories.ConversionRepository, *sql.DB, error) {
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewConversionRepository(db), db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
