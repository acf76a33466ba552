package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/sp2yt/internal/cache"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheClear drops every failed-query key.
//
// Only a shared (Redis) cache outlives the process, so without one there is nothing to clear.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if r.config.Redis.URL == "" && r.failed == nil {
		return r.writePlain("No shared failed-query cache configured; nothing to clear.\n")
	}

	c, ok := r.failedCache(ctx).(cache.Clearer)
	if !ok {
		return fmt.Errorf("%w: failed-query cache cannot be cleared", shared.ErrServiceUnavailable)
	}
	n, err := c.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	r.logger.Info("failed-query cache cleared", "keys", n)
	return r.writePlain("✓ Cleared %d failed queries\n", n)
}

// CacheList prints the stored conversions.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	conversions, err := store.List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(conversions, true)
	}

	if len(conversions) == 0 {
		return r.writePlain("No stored conversions.\n")
	}
	for _, c := range conversions {
		r.writePlain("%s  %d/%d found  updated %s\n", c.PlaylistKey, c.FoundCount, c.TrackCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

// CachePrune deletes one stored conversion by key, or every conversion older than --older-than.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	key := cmd.String("key")
	olderThan := cmd.Duration("older-than")

	if key != "" && olderThan > 0 {
		return fmt.Errorf("%w: cannot specify both --key and --older-than", shared.ErrInvalidArgument)
	}

	store, db, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if key != "" {
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		return r.writePlain("✓ Deleted %s\n", key)
	}

	n, err := store.Prune(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	r.logger.Info("conversions pruned", "deleted", n, "older_than", olderThan)
	return r.writePlain("✓ Deleted %d stored conversions\n", n)
}
