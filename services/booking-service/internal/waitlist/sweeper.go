package waitlist

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically removes expired waitlist entries.
type Sweeper struct {
	repo     ExpiredDeleter
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(repo ExpiredDeleter, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{repo: repo, interval: interval, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("waitlist sweep failed", "error", err)
				}
				continue
			}
			if swept > 0 {
				s.logger.Info("expired waitlist entries removed", "count", swept)
			}
		}
	}
}
