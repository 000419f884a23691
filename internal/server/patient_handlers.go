package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"

	"github.com/retinoscan/retinoscan/internal/models"
	"github.com/retinoscan/retinoscan/internal/patients"
	"github.com/retinoscan/retinoscan/internal/tasks"
	"github.com/retinoscan/retinoscan/internal/workers"
)

// CreatePatientRequest represents a patient registration
type CreatePatientRequest struct {
	RecordNumber  string `json:"record_number" binding:"required"`
	DocumentID    string `json:"document_id" binding:"required"`
	FirstNames    string `json:"first_names" binding:"required"`
	LastNames     string `json:"last_names" binding:"required"`
	BirthDate     string `json:"birth_date" binding:"required"` // YYYY-MM-DD
	Sex           string `json:"sex" binding:"required,oneof=M F"`
	DiabetesType  string `json:"diabetes_type" binding:"required,oneof=tipo1 tipo2 desconocido"`
	DilationState string `json:"dilation_state" binding:"required,oneof=dilatado no_dilatado"`
	RetinalCamera string `json:"retinal_camera"`
}

// UpdatePatientRequest represents a partial patient update
type UpdatePatientRequest struct {
	FirstNames    *string `json:"first_names"`
	LastNames     *string `json:"last_names"`
	BirthDate     *string `json:"birth_date"`
	Sex           *string `json:"sex" binding:"omitempty,oneof=M F"`
	DiabetesType  *string `json:"diabetes_type" binding:"omitempty,oneof=tipo1 tipo2 desconocido"`
	DilationState *string `json:"dilation_state" binding:"omitempty,oneof=dilatado no_dilatado"`
	RetinalCamera *string `json:"retinal_camera"`
}

const birthDateLayout = "2006-01-02"

// @Summary Register patient
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePatientRequest true "Patient registration"
// @Success 201 {object} models.Patient
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/patients [post]
func (s *Server) createPatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid birth_date, expected YYYY-MM-DD"})
		return
	}

	sessionData, _ := GetSessionData(c)

	patient := &models.Patient{
		RecordNumber:  req.RecordNumber,
		DocumentID:    req.DocumentID,
		FirstNames:    req.FirstNames,
		LastNames:     req.LastNames,
		BirthDate:     birthDate,
		Sex:           req.Sex,
		DiabetesType:  req.DiabetesType,
		DilationState: req.DilationState,
		RetinalCamera: req.RetinalCamera,
		CreatedByID:   sessionData.UserID,
	}

	if err := s.patientsService.Create(patient); err != nil {
		switch {
		case errors.Is(err, patients.ErrDuplicateRecordNumber), errors.Is(err, patients.ErrDuplicateDocumentID):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.logger.Error().Err(err).Msg("Failed to create patient")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create patient"})
		}
		return
	}

	c.JSON(http.StatusCreated, patient)
}

// @Summary List patients
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Patient
// @Router /api/patients [get]
func (s *Server) listPatients(c *gin.Context) {
	// Optional ?q= filter searches document id, record number and names
	query := c.Query("q")

	var (
		result []models.Patient
		err    error
	)
	if query != "" {
		result, err = s.patientsService.Search(query)
	} else {
		result, err = s.patientsService.List()
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list patients")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Get patient
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Success 200 {object} models.Patient
// @Failure 404 {object} map[string]interface{}
// @Router /api/patients/{id} [get]
func (s *Server) getPatient(c *gin.Context) {
	patient, err := s.patientsService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load patient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, patient)
}

// @Summary Update patient
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Param request body UpdatePatientRequest true "Patient update"
// @Success 200 {object} models.Patient
// @Failure 404 {object} map[string]interface{}
// @Router /api/patients/{id} [put]
func (s *Server) updatePatient(c *gin.Context) {
	patient, err := s.patientsService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load patient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FirstNames != nil {
		patient.FirstNames = *req.FirstNames
	}
	if req.LastNames != nil {
		patient.LastNames = *req.LastNames
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse(birthDateLayout, *req.BirthDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid birth_date, expected YYYY-MM-DD"})
			return
		}
		patient.BirthDate = birthDate
	}
	if req.Sex != nil {
		patient.Sex = *req.Sex
	}
	if req.DiabetesType != nil {
		patient.DiabetesType = *req.DiabetesType
	}
	if req.DilationState != nil {
		patient.DilationState = *req.DilationState
	}
	if req.RetinalCamera != nil {
		patient.RetinalCamera = *req.RetinalCamera
	}

	if err := s.db.Save(patient).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update patient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update patient"})
		return
	}

	c.JSON(http.StatusOK, patient)
}

// @Summary Delete patient
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/patients/{id} [delete]
func (s *Server) deletePatient(c *gin.Context) {
	if err := s.patientsService.Delete(c.Param("id")); err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to delete patient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete patient"})
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Upload retinal image
// @Description Stores a fundus image for a patient and queues it for analysis
// @Tags patients
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Param image formData file true "Fundus image"
// @Success 201 {object} models.RetinalImage
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/patients/{id}/images [post]
func (s *Server) uploadImage(c *gin.Context) {
	patient, err := s.patientsService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load patient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image format"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash image"})
		return
	}
	fileHash := hex.EncodeToString(hasher.Sum(nil))

	// Duplicate upload of the same image is rejected, matching the unique
	// hash constraint
	var dupes int64
	if err := s.db.Model(&models.RetinalImage{}).Where("file_hash = ?", fileHash).Count(&dupes).Error; err == nil && dupes > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Image already uploaded"})
		return
	}

	destDir := filepath.Join(s.config.Media.Dir, "patients", patient.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create media directory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}
	destPath := filepath.Join(destDir, fmt.Sprintf("%s%s", ulid.Make().String(), ext))

	if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save uploaded image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	image := &models.RetinalImage{
		PatientID:      patient.ID,
		FilePath:       destPath,
		FileHash:       fileHash,
		AnalysisStatus: models.AnalysisPending,
	}
	if err := s.db.Create(image).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create image record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	s.logger.Info().
		Str("image_id", image.ID).
		Str("patient_id", patient.ID).
		Msg("Retinal image uploaded")

	c.JSON(http.StatusCreated, image)
}

// @Summary Trigger image analysis
// @Description Queues a stored image for grading by the remote prediction service
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Image ID"
// @Success 202 {object} models.RetinalImage
// @Failure 404 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /api/images/{id}/analyze [post]
func (s *Server) analyzeImage(c *gin.Context) {
	var image models.RetinalImage
	if err := models.FindByID(s.db, c.Param("id"), &image); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	var cfg models.Config
	if err := s.db.First(&cfg).Error; err != nil || cfg.MLServiceURL == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Prediction service is not configured"})
		return
	}

	// Backpressure: cap the number of queued analyses
	var pending int64
	if err := s.db.Model(&models.RetinalImage{}).
		Where("analysis_status IN ?", []string{models.AnalysisQueued, models.AnalysisRunning}).
		Count(&pending).Error; err == nil && cfg.MaxPendingAnalyses > 0 && pending >= int64(cfg.MaxPendingAnalyses) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many analyses in flight, retry later"})
		return
	}

	task, err := tasks.NewAnalyzeImageTask(image.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create analysis task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue analysis"})
		return
	}

	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("critical"),
		asynq.MaxRetry(workers.AnalyzeMaxRetry),
		asynq.Timeout(workers.AnalyzeTimeout),
	); err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue analysis task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue analysis"})
		return
	}

	if err := s.db.Model(&image).Update("analysis_status", models.AnalysisQueued).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to mark image queued")
	}

	s.logger.Info().Str("image_id", image.ID).Msg("Image analysis queued")

	image.AnalysisStatus = models.AnalysisQueued
	c.JSON(http.StatusAccepted, image)
}

// @Summary Dashboard stats
// @Description Registry aggregation for the specialist and admin dashboards
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} patients.Stats
// @Router /api/dashboard/stats [get]
func (s *Server) dashboardStats(c *gin.Context) {
	stats, err := s.patientsService.DashboardStats()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to aggregate stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
