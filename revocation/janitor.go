package revocation

import (
	"context"
	"log/slog"
	"time"
)

// Janitor calls Purge on a fixed interval.
type Janitor struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor returns a Janitor for store. A non-positive interval defaults to
// ten minutes; a nil logger discards output.
func NewJanitor(store Store, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Janitor{store: store, interval: interval, logger: logger}
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.purge(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.store.Purge(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Warn("revocation purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		j.logger.Debug("revocation purge", "removed", n)
	}
}
