package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats reports how many search batches are cached for the current session.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if r.searchCache == nil {
		return fmt.Errorf("%w: search cache requires a database", shared.ErrServiceUnavailable)
	}

	sessionID := r.store.SessionID()
	if sessionID == "" {
		return r.writePlain("No active session, nothing cached\n")
	}

	n, err := r.searchCache.Count(ctx, sessionID)
	if err != nil {
		return err
	}
	return r.writePlain("Session %s: %d cached searches\n", sessionID, n)
}

// CacheClear drops cached search batches. With --stale only batches from ended sessions go.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if r.searchCache == nil {
		return fmt.Errorf("%w: search cache requires a database", shared.ErrServiceUnavailable)
	}

	if cmd.Bool("stale") {
		n, err := r.searchCache.Prune(ctx, r.store.SessionID())
		if err != nil {
			return err
		}
		r.logger.Debug("pruned search cache", "rows", n)
		return r.writePlain("✓ Removed %d stale cached searches\n", n)
	}

	sessionID := r.store.SessionID()
	if sessionID == "" {
		return r.writePlain("No active session, nothing to clear\n")
	}
	if err := r.searchCache.Clear(ctx, sessionID); err != nil {
		return err
	}
	return r.writePlain("✓ Search cache cleared\n")
}
