package patients

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/retinoscan/retinoscan/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	return NewService(db, zerolog.Nop())
}

func newPatient(recordNumber, documentID, firstNames, lastNames string) *models.Patient {
	return &models.Patient{
		RecordNumber:  recordNumber,
		DocumentID:    documentID,
		FirstNames:    firstNames,
		LastNames:     lastNames,
		BirthDate:     time.Date(1960, 5, 2, 0, 0, 0, 0, time.UTC),
		Sex:           "M",
		DiabetesType:  "tipo2",
		DilationState: "no_dilatado",
	}
}

func TestCreate_AssignsULID(t *testing.T) {
	svc := newTestService(t)

	p := newPatient("HC-0001", "12345678", "Luis", "Paredes")
	require.NoError(t, svc.Create(p))

	assert.Len(t, p.ID, 26)
}

func TestCreate_DuplicateRecordNumber(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Create(newPatient("HC-0001", "12345678", "Luis", "Paredes")))

	err := svc.Create(newPatient("HC-0001", "87654321", "Marta", "Quispe"))
	assert.ErrorIs(t, err, ErrDuplicateRecordNumber)
}

func TestCreate_DuplicateDocumentID(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Create(newPatient("HC-0001", "12345678", "Luis", "Paredes")))

	err := svc.Create(newPatient("HC-0002", "12345678", "Marta", "Quispe"))
	assert.ErrorIs(t, err, ErrDuplicateDocumentID)
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get("01JMISSING0000000000000000")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestSearch_MatchesDocumentAndNames(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Create(newPatient("HC-0001", "12345678", "Luis", "Paredes")))
	require.NoError(t, svc.Create(newPatient("HC-0002", "87654321", "Marta", "Quispe")))

	byDocument, err := svc.Search("1234")
	require.NoError(t, err)
	require.Len(t, byDocument, 1)
	assert.Equal(t, "Paredes", byDocument[0].LastNames)

	byName, err := svc.Search("Quis")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Marta", byName[0].FirstNames)

	byRecord, err := svc.Search("HC-000")
	require.NoError(t, err)
	assert.Len(t, byRecord, 2)

	none, err := svc.Search("nothing-matches")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearch_BlankQueryListsAll(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Create(newPatient("HC-0001", "12345678", "Luis", "Paredes")))

	all, err := svc.Search("   ")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDelete_RemovesPatient(t *testing.T) {
	svc := newTestService(t)

	p := newPatient("HC-0001", "12345678", "Luis", "Paredes")
	require.NoError(t, svc.Create(p))
	require.NoError(t, svc.Delete(p.ID))

	_, err := svc.Get(p.ID)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	assert.ErrorIs(t, svc.Delete(p.ID), ErrPatientNotFound)
}

func TestDashboardStats(t *testing.T) {
	svc := newTestService(t)

	p := newPatient("HC-0001", "12345678", "Luis", "Paredes")
	require.NoError(t, svc.Create(p))

	grade := models.GradeModerate
	confidence := 0.91
	images := []models.RetinalImage{
		{
			PatientID:      p.ID,
			FilePath:       "patients/a/one.jpg",
			FileHash:       "hash-one",
			AnalysisStatus: models.AnalysisComplete,
			Grade:          &grade,
			Confidence:     &confidence,
		},
		{
			PatientID:      p.ID,
			FilePath:       "patients/a/two.jpg",
			FileHash:       "hash-two",
			AnalysisStatus: models.AnalysisPending,
		},
	}
	for i := range images {
		require.NoError(t, svc.db.Create(&images[i]).Error)
	}

	stats, err := svc.DashboardStats()
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalPatients)
	assert.Equal(t, int64(2), stats.TotalImages)
	assert.Equal(t, int64(1), stats.AnalyzedImages)
	assert.Equal(t, int64(1), stats.PendingImages)
	assert.Equal(t, int64(1), stats.RecentPatients)
	assert.Equal(t, int64(1), stats.ByGrade[models.GradeLabel(models.GradeModerate)])
}
