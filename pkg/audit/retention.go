package audit

import (
	"context"
	"log/slog"
	"time"
)

// RunRetention periodically deletes events older than the configured
// retention window. It blocks until the context is cancelled.
func RunRetention(ctx context.Context, store *Store, cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil || cfg == nil || !cfg.Enabled || cfg.RetentionDays <= 0 {
		logger.Info("audit retention disabled")
		return
	}

	ticker := time.NewTicker(cfg.CleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
			deleted, err := store.DeleteOlderThan(cutoff)
			if err != nil {
				logger.Error("audit retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("audit retention sweep", "deleted", deleted)
			}
		}
	}
}
