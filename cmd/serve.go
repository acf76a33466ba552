package main

import (
	"context"
	"time"

	"github.com/desertthunder/sp2yt/internal/server"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP job server until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile(cmd.String("profile"))
	if err != nil {
		return err
	}
	matcher, err := r.matcher(ctx)
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Matcher: matcher,
		Profile: profile,
		Logger:  shared.WithLogger(r.logger, "component", "server"),
	}

	if source, err := r.trackSource(ctx, false); err != nil {
		r.logger.Warn("spotify source unavailable, playlist references disabled", "error", err)
	} else {
		deps.Source = source
	}

	opts := tasks.RegistryOpts{
		Default: profile.Config,
		Logger:  shared.WithLogger(r.logger, "component", "registry"),
	}
	if !cmd.Bool("no-store") {
		store, db, err := r.openStore(ctx)
		if err != nil {
			r.logger.Warn("conversion store unavailable, results will not be persisted", "error", err)
		} else {
			defer db.Close()
			opts.Store = store
			deps.Store = store
		}
	}

	registry := tasks.NewRegistry(matcher, opts)
	deps.Registry = registry

	jobs := r.config.Jobs
	if jobs.GCInterval.Duration > 0 && jobs.Retention.Duration > 0 {
		registry.StartJanitor(ctx, jobs.GCInterval.Duration, jobs.Retention.Duration)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	r.logger.Info("starting server", "addr", addr, "profile", profile.Name)

	err = server.Run(ctx, addr, server.NewRouter(deps), r.logger)

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := registry.Shutdown(sctx); serr != nil {
		r.logger.Warn("jobs did not stop cleanly", "error", serr)
	}
	return err
}
