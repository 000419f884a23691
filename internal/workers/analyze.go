package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/mlclient"
	"github.com/retinoscan/retinoscan/internal/models"
	"github.com/retinoscan/retinoscan/internal/tasks"
)

// Analysis retry policy mirrored from the original pipeline
const (
	AnalyzeMaxRetry = 3
	AnalyzeTimeout  = 10 * time.Minute
)

// HandleAnalyzeImage grades one retinal image through the remote prediction
// service and stores the result. Returning an error lets Asynq retry with
// backoff; once retries are exhausted the image is marked failed by
// MarkFailedOnLastRetry.
func HandleAnalyzeImage(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseAnalyzeImagePayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	var image models.RetinalImage
	if err := models.FindByID(db, payload.ImageID, &image); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Image row was deleted while the task sat in the queue; nothing
			// left to do.
			logger.Warn().Str("image_id", payload.ImageID).Msg("Image not found, skipping analysis")
			return nil
		}
		return fmt.Errorf("failed to load image: %w", err)
	}

	var cfg models.Config
	if err := db.First(&cfg).Error; err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.MLServiceURL == "" {
		return fmt.Errorf("ml service url is not configured")
	}

	if err := db.Model(&image).Update("analysis_status", models.AnalysisRunning).Error; err != nil {
		return fmt.Errorf("failed to mark image running: %w", err)
	}

	client := mlclient.New(cfg.MLServiceURL)
	result, err := client.Predict(ctx, mlclient.PredictRequest{
		ImagePath:    image.FilePath,
		ImageHash:    image.FileHash,
		ModelVersion: cfg.ModelVersion,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("image_id", image.ID).
			Msg("Prediction failed")
		return fmt.Errorf("prediction failed: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"analysis_status": models.AnalysisComplete,
		"grade":           result.Grade,
		"confidence":      result.Confidence,
		"model_version":   result.ModelVersion,
		"analyzed_at":     &now,
		"failure_reason":  "",
	}
	if err := db.Model(&image).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}

	logger.Info().
		Str("image_id", image.ID).
		Str("patient_id", image.PatientID).
		Int("grade", result.Grade).
		Float64("confidence", result.Confidence).
		Msg("Image analysis complete")

	return nil
}

// MarkFailedOnLastRetry records the terminal failure on the image row once
// asynq runs out of retries
func MarkFailedOnLastRetry(db *gorm.DB, logger zerolog.Logger) func(ctx context.Context, t *asynq.Task, err error) {
	return func(ctx context.Context, t *asynq.Task, err error) {
		if t.Type() != tasks.TypeAnalyzeImage {
			return
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried < maxRetry {
			return
		}

		payload, perr := tasks.ParseAnalyzeImagePayload(t)
		if perr != nil {
			logger.Error().Err(perr).Msg("Failed to parse payload of exhausted task")
			return
		}

		updates := map[string]interface{}{
			"analysis_status": models.AnalysisFailed,
			"failure_reason":  err.Error(),
		}
		if derr := db.Model(&models.RetinalImage{}).
			Where("id = ?", payload.ImageID).
			Updates(updates).Error; derr != nil {
			logger.Error().Err(derr).Str("image_id", payload.ImageID).Msg("Failed to mark image failed")
			return
		}

		logger.Warn().
			Str("image_id", payload.ImageID).
			Err(err).
			Msg("Image analysis failed permanently")
	}
}
