package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/retinoscan/retinoscan/internal/mlclient"
	"github.com/retinoscan/retinoscan/internal/models"
	"github.com/retinoscan/retinoscan/internal/tasks"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func seedImage(t *testing.T, db *gorm.DB, status string) *models.RetinalImage {
	t.Helper()

	patient := &models.Patient{
		RecordNumber:  "HC-0001",
		DocumentID:    "12345678",
		FirstNames:    "Luis",
		LastNames:     "Paredes",
		BirthDate:     time.Date(1960, 5, 2, 0, 0, 0, 0, time.UTC),
		Sex:           "M",
		DiabetesType:  "tipo2",
		DilationState: "no_dilatado",
	}
	require.NoError(t, db.Create(patient).Error)

	image := &models.RetinalImage{
		PatientID:      patient.ID,
		FilePath:       "patients/a/one.jpg",
		FileHash:       "hash-one",
		AnalysisStatus: status,
	}
	require.NoError(t, db.Create(image).Error)
	return image
}

func TestHandleAnalyzeImage_StoresResult(t *testing.T) {
	db := newTestDB(t)
	image := seedImage(t, db, models.AnalysisQueued)

	ml := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mlclient.PredictResponse{
			Grade:        3,
			Confidence:   0.87,
			ModelVersion: "efficientnet-b3-v2",
		})
	}))
	defer ml.Close()

	require.NoError(t, db.Create(&models.Config{JWTSecret: "s", MLServiceURL: ml.URL, RetentionDays: 30}).Error)

	task, err := tasks.NewAnalyzeImageTask(image.ID)
	require.NoError(t, err)

	require.NoError(t, HandleAnalyzeImage(context.Background(), task, db, zerolog.Nop()))

	var updated models.RetinalImage
	require.NoError(t, models.FindByID(db, image.ID, &updated))
	assert.Equal(t, models.AnalysisComplete, updated.AnalysisStatus)
	require.NotNil(t, updated.Grade)
	assert.Equal(t, 3, *updated.Grade)
	require.NotNil(t, updated.Confidence)
	assert.InDelta(t, 0.87, *updated.Confidence, 0.001)
	assert.Equal(t, "efficientnet-b3-v2", updated.ModelVersion)
	assert.NotNil(t, updated.AnalyzedAt)
}

func TestHandleAnalyzeImage_MissingImageIsNotAnError(t *testing.T) {
	db := newTestDB(t)

	task, err := tasks.NewAnalyzeImageTask("01JMISSING0000000000000000")
	require.NoError(t, err)

	assert.NoError(t, HandleAnalyzeImage(context.Background(), task, db, zerolog.Nop()))
}

func TestHandleAnalyzeImage_FailsWithoutConfiguredService(t *testing.T) {
	db := newTestDB(t)
	image := seedImage(t, db, models.AnalysisQueued)

	require.NoError(t, db.Create(&models.Config{JWTSecret: "s", MLServiceURL: "", RetentionDays: 30}).Error)

	task, err := tasks.NewAnalyzeImageTask(image.ID)
	require.NoError(t, err)

	assert.Error(t, HandleAnalyzeImage(context.Background(), task, db, zerolog.Nop()))
}

func TestHandleAnalyzeImage_PredictionErrorLeavesRetryableState(t *testing.T) {
	db := newTestDB(t)
	image := seedImage(t, db, models.AnalysisQueued)

	ml := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ml.Close()

	require.NoError(t, db.Create(&models.Config{JWTSecret: "s", MLServiceURL: ml.URL, RetentionDays: 30}).Error)

	task, err := tasks.NewAnalyzeImageTask(image.ID)
	require.NoError(t, err)

	require.Error(t, HandleAnalyzeImage(context.Background(), task, db, zerolog.Nop()))

	// The row stays in running, not failed: the terminal mark belongs to the
	// retry-exhaustion handler
	var updated models.RetinalImage
	require.NoError(t, models.FindByID(db, image.ID, &updated))
	assert.Equal(t, models.AnalysisRunning, updated.AnalysisStatus)
}

func TestHandleCleanupArtifacts_DeletesOldFailedImages(t *testing.T) {
	db := newTestDB(t)
	image := seedImage(t, db, models.AnalysisFailed)

	require.NoError(t, db.Create(&models.Config{JWTSecret: "s", RetentionDays: 30}).Error)

	// Age the row past the retention window
	old := time.Now().AddDate(0, 0, -45)
	require.NoError(t, db.Model(&models.RetinalImage{}).
		Where("id = ?", image.ID).
		Update("created_at", old).Error)

	// A fresh failed row must survive
	fresh := &models.RetinalImage{
		PatientID:      image.PatientID,
		FilePath:       "patients/a/two.jpg",
		FileHash:       "hash-two",
		AnalysisStatus: models.AnalysisFailed,
	}
	require.NoError(t, db.Create(fresh).Error)

	task, err := tasks.NewCleanupArtifactsTask()
	require.NoError(t, err)

	require.NoError(t, HandleCleanupArtifacts(context.Background(), task, db, zerolog.Nop()))

	var count int64
	require.NoError(t, db.Model(&models.RetinalImage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var cfg models.Config
	require.NoError(t, db.First(&cfg).Error)
	assert.NotNil(t, cfg.LastCleanupAt)
}

func TestNextScheduledTime(t *testing.T) {
	from := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	next := nextScheduledTime("0 3 * * *", from)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), *next)

	assert.Nil(t, nextScheduledTime("", from))
	assert.Nil(t, nextScheduledTime("not a cron expression", from))
}
