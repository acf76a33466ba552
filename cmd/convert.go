package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/sp2yt/internal/formatter"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/repositories"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

var openBrowser = shared.OpenBrowser

// Convert matches one playlist (or track file) and writes the report.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	playlist := cmd.String("playlist")
	file := cmd.String("file")
	format := cmd.String("format")

	if playlist == "" && file == "" {
		return fmt.Errorf("%w: either --playlist or --file must be provided", shared.ErrMissingArgument)
	}
	if playlist != "" && file != "" {
		return fmt.Errorf("%w: cannot specify both --playlist and --file", shared.ErrInvalidArgument)
	}
	if _, err := formatter.Extension(format); err != nil {
		return err
	}

	if cmd.Bool("tui") {
		restore, err := r.redirectLogs()
		if err != nil {
			return err
		}
		defer restore()
	}

	profile, err := r.profile(cmd.String("profile"))
	if err != nil {
		return err
	}
	cfg := profile.Config
	if cmd.Bool("advanced") {
		cfg.Advanced = true
	}

	ref, name := playlist, playlist
	if file != "" {
		ref, name = file, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	source, err := r.trackSource(ctx, file != "")
	if err != nil {
		return err
	}

	r.logger.Info("fetching tracks", "source", source.Name(), "ref", ref)
	tracks, err := source.FetchTracks(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch tracks: %w", err)
	}

	startFrom := int(cmd.Int("start-from"))
	maxTracks := int(cmd.Int("max-tracks"))
	if maxTracks == 0 {
		maxTracks = profile.Window
	}
	window, err := tasks.Window(tracks, startFrom, maxTracks)
	if err != nil {
		return err
	}

	var key string
	if len(window) == len(tracks) && !cmd.Bool("no-cache") {
		key = services.PlaylistKey(source, ref)
	}
	store, closeStore := r.conversionStore(ctx, key)
	defer closeStore()

	report, err := r.convertWindow(ctx, cmd, convertJob{
		name:      name,
		key:       key,
		window:    window,
		startFrom: startFrom,
		cfg:       cfg,
		store:     store,
	})
	if err != nil {
		return err
	}

	if next := startFrom + len(window); next < len(tracks) {
		r.logger.Info("more tracks remain", "converted", len(window), "total", len(tracks), "next", fmt.Sprintf("--start-from %d", next))
	}
	if err := r.writeReport(report, format, cmd.String("output")); err != nil {
		return err
	}
	if cmd.Bool("open") {
		if len(report.WatchURLs) == 0 {
			r.logger.Warn("no matched videos to open")
			return nil
		}
		if err := openBrowser(report.WatchURLs[0]); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

type convertJob struct {
	name      string
	key       string
	window    []models.Track
	startFrom int
	cfg       tasks.BatchConfig
	store     *repositories.ConversionRepository
}

// conversionStore opens the database when a conversion can be cached. Failures only disable caching.
func (r *Runner) conversionStore(ctx context.Context, key string) (*repositories.ConversionRepository, func()) {
	if key == "" {
		return nil, func() {}
	}
	store, db, err := r.openStore(ctx)
	if err != nil {
		r.logger.Warn("conversion store unavailable, caching disabled", "error", err)
		return nil, func() {}
	}
	return store, func() { db.Close() }
}

func (r *Runner) convertWindow(ctx context.Context, cmd *cli.Command, job convertJob) (formatter.Report, error) {
	if job.store != nil {
		results, ok, err := job.store.Load(ctx, job.key)
		if err != nil {
			r.logger.Warn("failed to load stored conversion", "key", job.key, "error", err)
		} else if ok {
			r.logger.Info("using stored conversion", "key", job.key, "tracks", len(results))
			return formatter.ReportFromResults(job.name, results), nil
		}
	}

	matcher, err := r.matcher(ctx)
	if err != nil {
		return formatter.Report{}, err
	}
	orch := tasks.NewOrchestrator(matcher, job.cfg, shared.WithLogger(r.logger, "playlist", job.name))

	var snap models.Snapshot
	if cmd.Bool("tui") {
		snap, err = r.runTUI(ctx, "Converting "+job.name, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) models.Snapshot {
			return orch.Run(ctx, job.window, progress)
		})
		if err != nil {
			return formatter.Report{}, err
		}
	} else {
		progress := make(chan tasks.ProgressUpdate, progressBuffer)
		done := r.logProgress(progress)
		snap = orch.Run(ctx, job.window, progress)
		close(progress)
		<-done
	}
	snap.Offset = job.startFrom

	r.logger.Info("conversion finished",
		"outcome", snap.Outcome,
		"found", snap.Stats.Found,
		"total", snap.Stats.Total,
		"success_rate", fmt.Sprintf("%.1f%%", snap.Stats.SuccessRate()),
	)

	if job.store != nil && snap.Status == models.JobCompleted && snap.StopReason == models.StopNone {
		if err := job.store.Save(ctx, job.key, snap.TrackResults()); err != nil {
			r.logger.Warn("failed to store conversion", "key", job.key, "error", err)
		}
	}
	return formatter.NewReport(job.name, snap), nil
}

// logProgress logs updates until progress is closed, then closes the returned channel.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			switch u.Phase {
			case tasks.Stopped:
				r.logger.Warn(u.Message, "phase", u.Phase)
			default:
				r.logger.Info(u.Message, "phase", u.Phase)
			}
		}
	}()
	return done
}

func (r *Runner) writeReport(report formatter.Report, format, output string) error {
	if output != "" {
		path, err := formatter.WriteExport(report, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
		return nil
	}

	data, _, err := formatter.Export(report, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Bulk converts every playlist argument and exports each one to a directory.
func (r *Runner) Bulk(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	if len(refs) == 0 {
		return fmt.Errorf("%w: at least one playlist is required", shared.ErrMissingArgument)
	}

	profile, err := r.profile(cmd.String("profile"))
	if err != nil {
		return err
	}
	source, err := r.trackSource(ctx, cmd.Bool("files"))
	if err != nil {
		return err
	}
	matcher, err := r.matcher(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := r.logProgress(progress)
	res, err := tasks.NewOrchestrator(matcher, profile.Config, r.logger).BulkConvert(ctx, progress, source, refs, tasks.BulkConvertOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainHeader("Bulk conversion")
	for _, p := range res.Results {
		if p.Success {
			r.writePlain("✓ %s: %d/%d found (%s)\n", p.Name, p.Stats.Found, p.Stats.Total, p.Outcome)
		} else {
			r.writePlain("✗ %s: %s\n", p.Ref, p.ErrorMessage)
		}
	}
	r.writePlainln("%d succeeded, %d failed. Output: %s", res.Successful, res.Failed, res.OutputDirectory)
	return nil
}
