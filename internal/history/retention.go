package history

// retention.go deletes conversion runs older than the retention window.
//
// The job runs once on start and then every Interval until its context is
// cancelled. A failed prune is logged and retried on the next tick; it never
// stops the server.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteExpired = `DELETE FROM conversion_runs WHERE created_at < $1`

// RetentionConfig controls the prune job.
type RetentionConfig struct {
	MaxAge   time.Duration // Runs older than this are deleted; 0 disables pruning
	Interval time.Duration // How often to prune (default: 24h)
}

// Prune deletes runs created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteExpired, pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Pruner deletes expired runs. *Store implements it.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartRetention prunes expired runs immediately and then every
// cfg.Interval. It blocks until ctx is cancelled; run it in a goroutine.
func StartRetention(ctx context.Context, p Pruner, cfg RetentionConfig) {
	if cfg.MaxAge <= 0 {
		slog.Info("history retention disabled")
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	slog.Info("history retention started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.Interval.String(),
	)

	pruneOnce(ctx, p, cfg.MaxAge, time.Now)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention stopped")
			return
		case <-ticker.C:
			pruneOnce(ctx, p, cfg.MaxAge, time.Now)
		}
	}
}

// pruneOnce runs one prune cycle.
func pruneOnce(ctx context.Context, p Pruner, maxAge time.Duration, now func() time.Time) {
	start := time.Now()
	cutoff := now().Add(-maxAge)

	deleted, err := p.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned conversion runs",
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
