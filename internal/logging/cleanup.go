package logging

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/jobs"
	"github.com/nullpass/nullpass/internal/models"
)

// Retention is how long system logs are kept.
const Retention = 30 * 24 * time.Hour

// StartCleanup deletes system_logs older than Retention once a day until
// done is closed.
func StartCleanup(db *gorm.DB, done <-chan struct{}) {
	jobs.Every("system-log-cleanup", 24*time.Hour, done, func(ctx context.Context) {
		cutoff := time.Now().Add(-Retention)
		result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
		if result.Error != nil {
			slog.Error("log cleanup failed", "error", result.Error)
		} else if result.RowsAffected > 0 {
			slog.Info("log cleanup completed", "deleted", result.RowsAffected)
		}
	})
}
