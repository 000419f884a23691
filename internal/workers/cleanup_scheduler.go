package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/models"
	"github.com/retinoscan/retinoscan/internal/tasks"
)

// StartCleanupScheduler runs a periodic check (every minute) for the
// configured retention cleanup schedule
func StartCleanupScheduler(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	checkAndEnqueueCleanup(client, db, logger)

	for range ticker.C {
		checkAndEnqueueCleanup(client, db, logger)
	}
}

func checkAndEnqueueCleanup(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	var cfg models.Config
	if err := db.First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Debug().Msg("No config found - skipping cleanup check")
			return
		}
		logger.Error().Err(err).Msg("Failed to query config for cleanup")
		return
	}

	if cfg.CleanupSchedule == "" {
		logger.Debug().Msg("No cleanup schedule configured")
		return
	}

	if cfg.NextCleanupAt != nil && cfg.NextCleanupAt.After(time.Now()) {
		return
	}

	task, err := tasks.NewCleanupArtifactsTask()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create cleanup task")
		return
	}

	if _, err := client.Enqueue(task, asynq.Queue("low"), asynq.Timeout(30*time.Minute)); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue cleanup task")
		return
	}

	// Update NextCleanupAt immediately so the scheduler does not enqueue a
	// duplicate on the next tick
	now := time.Now()
	if next := nextScheduledTime(cfg.CleanupSchedule, now); next != nil {
		if err := db.Model(&cfg).Update("next_cleanup_at", next).Error; err != nil {
			logger.Error().Err(err).Msg("Failed to update next_cleanup_at")
		}
	}

	logger.Info().
		Str("cleanup_schedule", cfg.CleanupSchedule).
		Msg("Retention cleanup task enqueued")
}

// HandleCleanupArtifacts deletes failed analysis rows older than the
// configured retention window
func HandleCleanupArtifacts(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	var cfg models.Config
	if err := db.First(&cfg).Error; err != nil {
		return err
	}

	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	result := db.Where("analysis_status = ? AND created_at < ?", models.AnalysisFailed, cutoff).
		Delete(&models.RetinalImage{})
	if result.Error != nil {
		return result.Error
	}

	now := time.Now().UTC()
	if err := db.Model(&cfg).Update("last_cleanup_at", &now).Error; err != nil {
		logger.Error().Err(err).Msg("Failed to update last_cleanup_at")
	}

	logger.Info().
		Int64("deleted", result.RowsAffected).
		Time("cutoff", cutoff).
		Msg("Retention cleanup complete")

	return nil
}

// nextScheduledTime calculates the next run from a cron schedule
func nextScheduledTime(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}

	// Standard 5-field format: minute hour day-of-month month day-of-week
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil
	}

	next := schedule.Next(from)
	return &next
}
