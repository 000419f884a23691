package models

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/session"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config represents the global configuration for the single-tenant deployment
// This is a singleton model (only one row should exist)
type Config struct {
	BaseModel
	// Authentication configuration
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first setup (64 hex chars)

	// Remote machine-learning service that performs the actual image analysis
	MLServiceURL string `json:"ml_service_url" gorm:"type:text"`
	ModelVersion string `json:"model_version"`

	// Retention configuration for analysis artifacts
	CleanupSchedule string     `json:"cleanup_schedule"` // Cron expression, empty = no scheduled cleanup
	RetentionDays   int        `json:"retention_days" gorm:"not null;default:30"`
	LastCleanupAt   *time.Time `json:"last_cleanup_at"`
	NextCleanupAt   *time.Time `json:"next_cleanup_at"`

	// Concurrency cap for queued analyses
	MaxPendingAnalyses int `json:"max_pending_analyses" gorm:"not null;default:20"`
}

// UserAccount represents a clinician or administrator account
type UserAccount struct {
	BaseModel
	Username     string       `json:"username" gorm:"unique;not null"`
	Email        string       `json:"email" gorm:"unique;not null"`
	PasswordHash string       `json:"-" gorm:"not null"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Role         session.Role `json:"role" gorm:"type:varchar(15);not null;default:'medico'"`
	Picture      string       `json:"picture,omitempty"`
	IsActive     bool         `json:"is_active" gorm:"not null;default:true"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// SessionUser converts the account into the wire-shape identity record
func (u *UserAccount) SessionUser() *session.User {
	return &session.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Picture:   u.Picture,
	}
}

// Retinopathy grades produced by the remote model (0-4)
const (
	GradeNone          = 0
	GradeMild          = 1
	GradeModerate      = 2
	GradeSevere        = 3
	GradeProliferative = 4
)

// GradeLabel returns the clinical label for a retinopathy grade
func GradeLabel(grade int) string {
	switch grade {
	case GradeNone:
		return "Sin retinopatía"
	case GradeMild:
		return "Leve"
	case GradeModerate:
		return "Moderada"
	case GradeSevere:
		return "Severa"
	case GradeProliferative:
		return "Proliferativa"
	default:
		return "Sin resultado"
	}
}

// Patient represents a screened patient
type Patient struct {
	BaseModel
	RecordNumber  string    `json:"record_number" gorm:"not null;unique"` // historia clínica
	DocumentID    string    `json:"document_id" gorm:"not null;unique;index"`
	FirstNames    string    `json:"first_names" gorm:"not null;index:idx_patient_names"`
	LastNames     string    `json:"last_names" gorm:"not null;index:idx_patient_names"`
	BirthDate     time.Time `json:"birth_date"`
	Sex           string    `json:"sex" gorm:"type:varchar(1)"`             // M, F
	DiabetesType  string    `json:"diabetes_type" gorm:"type:varchar(20)"`  // tipo1, tipo2, desconocido
	DilationState string    `json:"dilation_state" gorm:"type:varchar(20)"` // dilatado, no_dilatado
	RetinalCamera string    `json:"retinal_camera"`
	CreatedByID   string    `json:"created_by_id"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Images    []RetinalImage `json:"images,omitempty" gorm:"foreignKey:PatientID"`
	CreatedBy *UserAccount   `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID;references:ID;constraint:OnDelete:SET NULL"`
}

// FullName returns the patient's display name
func (p *Patient) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstNames, p.LastNames)
}

// Analysis lifecycle for a retinal image
const (
	AnalysisPending  = "pending"
	AnalysisQueued   = "queued"
	AnalysisRunning  = "running"
	AnalysisComplete = "complete"
	AnalysisFailed   = "failed"
)

// RetinalImage represents an uploaded fundus image and its analysis result
type RetinalImage struct {
	BaseModel
	PatientID string `json:"patient_id" gorm:"not null;index:idx_image_patient"`
	FilePath  string `json:"file_path" gorm:"not null"`
	FileHash  string `json:"file_hash" gorm:"type:varchar(64);uniqueIndex"`

	// Results from the remote prediction service
	AnalysisStatus string     `json:"analysis_status" gorm:"not null;default:'pending';index"`
	Grade          *int       `json:"grade"`
	Confidence     *float64   `json:"confidence"`
	ModelVersion   string     `json:"model_version"`
	AnalyzedAt     *time.Time `json:"analyzed_at"`
	FailureReason  string     `json:"failure_reason,omitempty"`

	// Relationships
	Patient Patient `json:"patient,omitzero" gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
}

// GradeText returns the clinical label for the image's grade, if any
func (i *RetinalImage) GradeText() string {
	if i.Grade == nil {
		return GradeLabel(-1)
	}
	return GradeLabel(*i.Grade)
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&UserAccount{}, &Config{}, &Patient{}, &RetinalImage{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
