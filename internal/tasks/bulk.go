package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/sp2yt/internal/formatter"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"golang.org/x/time/rate"
)

// BulkConvertOpts contains configuration for converting several playlists in one run.
type BulkConvertOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: sp2yt_export_{epoch})
	NumWorkers int     // Concurrent playlists (default: 2)
	RateLimit  float64 // Playlist fetches per second (default: 2)
}

// PlaylistConversionResult is the outcome of one playlist in a bulk run.
type PlaylistConversionResult struct {
	Ref          string         `json:"ref"`
	Name         string         `json:"name"`
	Success      bool           `json:"success"`
	Outcome      models.Outcome `json:"outcome,omitempty"`
	Stats        models.Stats   `json:"stats"`
	Files        []string       `json:"files,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
	Error        error          `json:"-"`
}

// BulkConvertResult summarises a bulk run and is written as its manifest.
type BulkConvertResult struct {
	TotalPlaylists  int                        `json:"total_playlists"`
	Successful      int                        `json:"successful"`
	Failed          int                        `json:"failed"`
	OutputDirectory string                     `json:"output_directory"`
	ManifestPath    string                     `json:"-"`
	Results         []PlaylistConversionResult `json:"results"`
}

type fetchedPlaylist struct {
	ref    string
	tracks []models.Track
}

// BulkConvert fetches each playlist from source, converts it, and exports it to OutputDir.
//
// Fetches are rate limited; conversions run on a small worker pool so the search backend
// sees at most NumWorkers concurrent jobs. A playlist that fails to fetch or export is recorded
// and does not stop the others.
func (o *Orchestrator) BulkConvert(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	source services.TrackSource,
	refs []string,
	opts BulkConvertOpts,
) (*BulkConvertResult, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: track source not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("sp2yt_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}
	if _, err := formatter.Extension(opts.Format); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkConvertResult{
		TotalPlaylists:  len(refs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistConversionResult, 0, len(refs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan fetchedPlaylist, len(refs))
	results := make(chan PlaylistConversionResult, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go o.convertWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for _, ref := range refs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(prog, FetchTracksUpdate(source.Name(), ref))
			tracks, err := source.FetchTracks(ctx, ref)
			if err != nil {
				results <- PlaylistConversionResult{
					Ref:          ref,
					Name:         ref,
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
					ErrorMessage: err.Error(),
				}
				continue
			}
			jobs <- fetchedPlaylist{ref: ref, tracks: tracks}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		sendProgress(prog, exportDoneUpdate(completed, len(refs), res))
	}

	manifestPath := filepath.Join(opts.OutputDir, "manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err == nil {
		err = os.WriteFile(manifestPath, data, 0644)
	}
	if err != nil {
		return result, fmt.Errorf("conversion completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// convertWorker converts fetched playlists until jobs is closed.
func (o *Orchestrator) convertWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan fetchedPlaylist,
	results chan<- PlaylistConversionResult,
	opts BulkConvertOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- o.convertOne(ctx, job, opts)
	}
}

func (o *Orchestrator) convertOne(ctx context.Context, job fetchedPlaylist, opts BulkConvertOpts) PlaylistConversionResult {
	name := formatter.FileName(job.ref)
	res := PlaylistConversionResult{Ref: job.ref, Name: name}

	snap := o.Run(ctx, job.tracks, nil)
	res.Outcome = snap.Outcome
	res.Stats = snap.Stats

	if snap.Status != models.JobCompleted {
		res.Error = fmt.Errorf("conversion ended %s", snap.Status)
		res.ErrorMessage = res.Error.Error()
		return res
	}

	ext, _ := formatter.Extension(opts.Format)
	path, err := formatter.WriteExport(formatter.NewReport(job.ref, snap), opts.Format, filepath.Join(opts.OutputDir, name+ext))
	if err != nil {
		res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		res.ErrorMessage = res.Error.Error()
		return res
	}
	res.Files = []string{path}
	res.Success = true
	return res
}
