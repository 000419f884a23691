package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Image analysis pipeline
	TypeAnalyzeImage = "analysis:analyze_image"
	// Retention cleanup of stale analysis artifacts
	TypeCleanupArtifacts = "analysis:cleanup_artifacts"
)

// AnalyzeImagePayload identifies the image to run through the prediction
// service
type AnalyzeImagePayload struct {
	ImageID string `json:"image_id"`
}

// NewAnalyzeImageTask creates a task to grade one retinal image
func NewAnalyzeImageTask(imageID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyzeImagePayload{ImageID: imageID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeAnalyzeImage, payload), nil
}

// ParseAnalyzeImagePayload parses an analyze-image payload from an Asynq task
func ParseAnalyzeImagePayload(task *asynq.Task) (AnalyzeImagePayload, error) {
	var payload AnalyzeImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// NewCleanupArtifactsTask creates a retention cleanup task
func NewCleanupArtifactsTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeCleanupArtifacts, nil), nil
}
