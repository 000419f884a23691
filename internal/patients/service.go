package patients

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/models"
)

var (
	ErrDuplicateRecordNumber = errors.New("record number already registered")
	ErrDuplicateDocumentID   = errors.New("document id already registered")
	ErrPatientNotFound       = errors.New("patient not found")
)

// Service handles patient registry operations for the API server
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService creates a new patients service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "patients_service").Logger(),
	}
}

// Create registers a new patient, enforcing record-number and document-id
// uniqueness with readable errors instead of raw constraint failures
func (s *Service) Create(patient *models.Patient) error {
	var count int64
	if err := s.db.Model(&models.Patient{}).
		Where("record_number = ?", patient.RecordNumber).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check record number: %w", err)
	}
	if count > 0 {
		return ErrDuplicateRecordNumber
	}

	if err := s.db.Model(&models.Patient{}).
		Where("document_id = ?", patient.DocumentID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check document id: %w", err)
	}
	if count > 0 {
		return ErrDuplicateDocumentID
	}

	if err := s.db.Create(patient).Error; err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}

	s.logger.Info().
		Str("patient_id", patient.ID).
		Str("record_number", patient.RecordNumber).
		Msg("Patient registered")

	return nil
}

// List returns patients newest-first
func (s *Service) List() ([]models.Patient, error) {
	var patients []models.Patient
	if err := s.db.Order("created_at DESC").Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// Get loads one patient with their images
func (s *Service) Get(id string) (*models.Patient, error) {
	var patient models.Patient
	err := models.FindByIDWithPreload(s.db, id, &patient, "Images")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return &patient, nil
}

// Search finds patients by document id or by name fragments
func (s *Service) Search(query string) ([]models.Patient, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List()
	}

	pattern := "%" + query + "%"
	var patients []models.Patient
	err := s.db.
		Where("document_id LIKE ? OR first_names LIKE ? OR last_names LIKE ? OR record_number LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("last_names ASC").
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

// Delete removes a patient and, via FK cascade, their images
func (s *Service) Delete(id string) error {
	patient, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := s.db.Delete(patient).Error; err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	s.logger.Info().Str("patient_id", id).Msg("Patient deleted")
	return nil
}

// Stats is the dashboard aggregation over the registry
type Stats struct {
	TotalPatients  int64            `json:"total_patients"`
	TotalImages    int64            `json:"total_images"`
	AnalyzedImages int64            `json:"analyzed_images"`
	PendingImages  int64            `json:"pending_images"`
	ByGrade        map[string]int64 `json:"by_grade"`
	RecentPatients int64            `json:"recent_patients"` // registered in the last 30 days
}

// DashboardStats aggregates registry counts for the dashboard views
func (s *Service) DashboardStats() (*Stats, error) {
	stats := &Stats{ByGrade: make(map[string]int64)}

	if err := s.db.Model(&models.Patient{}).Count(&stats.TotalPatients).Error; err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	if err := s.db.Model(&models.RetinalImage{}).Count(&stats.TotalImages).Error; err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}
	if err := s.db.Model(&models.RetinalImage{}).
		Where("analysis_status = ?", models.AnalysisComplete).
		Count(&stats.AnalyzedImages).Error; err != nil {
		return nil, fmt.Errorf("failed to count analyzed images: %w", err)
	}
	if err := s.db.Model(&models.RetinalImage{}).
		Where("analysis_status IN ?", []string{models.AnalysisPending, models.AnalysisQueued, models.AnalysisRunning}).
		Count(&stats.PendingImages).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending images: %w", err)
	}

	type gradeCount struct {
		Grade int
		Count int64
	}
	var grades []gradeCount
	err := s.db.Model(&models.RetinalImage{}).
		Select("grade, COUNT(*) as count").
		Where("grade IS NOT NULL").
		Group("grade").
		Scan(&grades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate grades: %w", err)
	}
	for _, g := range grades {
		stats.ByGrade[models.GradeLabel(g.Grade)] = g.Count
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	if err := s.db.Model(&models.Patient{}).
		Where("created_at > ?", cutoff).
		Count(&stats.RecentPatients).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent patients: %w", err)
	}

	return stats, nil
}
