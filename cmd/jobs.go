package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/services"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/urfave/cli/v3"
)

func newAPIService(config *shared.Config, client *http.Client) *services.APIService {
	return services.NewAPIService("http://"+config.Server.Addr(), client)
}

// client returns the API client, honoring the jobs --server flag.
func (r *Runner) client(cmd *cli.Command) *services.APIService {
	if url := cmd.String("server"); url != "" {
		return services.NewAPIService(url, r.httpClient)
	}
	return r.api
}

func jobID(cmd *cli.Command) (string, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return "", fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}
	return id, nil
}

// JobsCreate starts a job for a playlist on the server.
func (r *Runner) JobsCreate(ctx context.Context, cmd *cli.Command) error {
	playlist := cmd.StringArg("playlist")
	if playlist == "" {
		return fmt.Errorf("%w: playlist is required", shared.ErrMissingArgument)
	}

	id, err := r.client(cmd).CreateJob(ctx, services.CreateJobRequest{
		Playlist:  playlist,
		Profile:   cmd.String("profile"),
		StartFrom: int(cmd.Int("start-from")),
		MaxTracks: int(cmd.Int("max-tracks")),
		Advanced:  cmd.Bool("advanced"),
	})
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", id)
}

// JobsList prints every job known to the server.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.client(cmd).ListJobs(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(jobs, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No jobs.\n")
	}
	for _, j := range jobs {
		r.writeJobLine(j)
	}
	return nil
}

func (r *Runner) writeJobLine(j models.Snapshot) {
	r.writePlain("%s  %-24s %d/%d  found %d  failed %d  started %s\n",
		j.ID, j.Outcome, j.Progress.Current, j.Progress.Total, j.Progress.Found, j.Progress.Failed,
		j.Timing.StartTime.Local().Format(time.DateTime))
}

// JobsStatus prints one job's progress, and optionally its results.
func (r *Runner) JobsStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	api := r.client(cmd)

	if cmd.Bool("results") {
		results, err := api.JobResults(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(results, true)
		}
		r.writePlainHeader(fmt.Sprintf("%s (%s)", results.ID, results.Outcome))
		for _, tr := range results.Results {
			if f, ok := tr.Result.Found(); ok {
				r.writePlain("✓ %d. %s → %s\n", tr.Index+1, tr.Track, f.VideoID)
			} else {
				r.writePlain("✗ %d. %s (%s)\n", tr.Index+1, tr.Track, tr.Result.Reason())
			}
		}
		for _, u := range results.WatchURLs {
			r.writePlainln("%s", u)
		}
		return nil
	}

	snap, err := api.JobStatus(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}
	r.writeJobLine(*snap)
	if eta := snap.Timing.EstimatedTimeRemaining; eta > 0 {
		r.writePlain("ETA %s\n", eta.Round(time.Second))
	}
	return nil
}

// JobsPause pauses a job at its next batch boundary.
func (r *Runner) JobsPause(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	if err := r.client(cmd).PauseJob(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ %s paused\n", id)
}

// JobsResume resumes a paused job.
func (r *Runner) JobsResume(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	if err := r.client(cmd).ResumeJob(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ %s resumed\n", id)
}

// JobsDelete cancels and forgets a job.
func (r *Runner) JobsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	if err := r.client(cmd).DeleteJob(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ %s deleted\n", id)
}
