package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/mlclient"
	"github.com/retinoscan/retinoscan/internal/models"
)

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	ID                 string     `json:"id"`
	MLServiceURL       string     `json:"ml_service_url"`
	ModelVersion       string     `json:"model_version"`
	CleanupSchedule    string     `json:"cleanup_schedule"`
	RetentionDays      int        `json:"retention_days"`
	MaxPendingAnalyses int        `json:"max_pending_analyses"`
	LastCleanupAt      *time.Time `json:"last_cleanup_at"`
	NextCleanupAt      *time.Time `json:"next_cleanup_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UpdateConfigRequest represents the request to update configuration
type UpdateConfigRequest struct {
	MLServiceURL       string `json:"mlServiceUrl"`
	ModelVersion       string `json:"modelVersion"`
	CleanupSchedule    string `json:"cleanupSchedule"`
	RetentionDays      *int   `json:"retentionDays"`
	MaxPendingAnalyses *int   `json:"maxPendingAnalyses"`
}

func configResponse(cfg *models.Config) ConfigResponse {
	return ConfigResponse{
		ID:                 cfg.ID,
		MLServiceURL:       cfg.MLServiceURL,
		ModelVersion:       cfg.ModelVersion,
		CleanupSchedule:    cfg.CleanupSchedule,
		RetentionDays:      cfg.RetentionDays,
		MaxPendingAnalyses: cfg.MaxPendingAnalyses,
		LastCleanupAt:      cfg.LastCleanupAt,
		NextCleanupAt:      cfg.NextCleanupAt,
		CreatedAt:          cfg.CreatedAt,
	}
}

// @Summary Get configuration
// @Description Get the current global configuration
// @Tags config
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ConfigResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/config [get]
func (s *Server) getConfig(c *gin.Context) {
	var cfg models.Config
	if err := s.db.First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Configuration not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to get config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, configResponse(&cfg))
}

// @Summary Update configuration
// @Description Update the global configuration
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateConfigRequest true "Configuration updates"
// @Success 200 {object} ConfigResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/config [patch]
func (s *Server) updateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var cfg models.Config
	if err := s.db.First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Configuration not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to get config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Changing the prediction service URL validates reachability first
	if req.MLServiceURL != "" && req.MLServiceURL != cfg.MLServiceURL {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		client := mlclient.New(req.MLServiceURL)
		if err := client.Health(ctx); err != nil {
			s.logger.Warn().Err(err).Str("url", req.MLServiceURL).Msg("Prediction service health check failed")
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Failed to reach prediction service",
				"details": err.Error(),
			})
			return
		}

		cfg.MLServiceURL = req.MLServiceURL
	}

	if req.ModelVersion != "" {
		cfg.ModelVersion = req.ModelVersion
	}

	if req.RetentionDays != nil {
		if *req.RetentionDays < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days must be at least 1"})
			return
		}
		cfg.RetentionDays = *req.RetentionDays
	}

	if req.MaxPendingAnalyses != nil {
		if *req.MaxPendingAnalyses < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_pending_analyses must be at least 1"})
			return
		}
		cfg.MaxPendingAnalyses = *req.MaxPendingAnalyses
	}

	// Update cleanup schedule (allow empty string to clear)
	cfg.CleanupSchedule = req.CleanupSchedule
	if req.CleanupSchedule != "" {
		cfg.NextCleanupAt = calculateNextCleanup(req.CleanupSchedule, time.Now())
		if cfg.NextCleanupAt == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cron expression"})
			return
		}
	} else {
		cfg.NextCleanupAt = nil
	}

	if err := s.db.Save(&cfg).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update configuration"})
		return
	}

	s.logger.Info().Str("config_id", cfg.ID).Msg("Configuration updated")

	c.JSON(http.StatusOK, configResponse(&cfg))
}

// calculateNextCleanup calculates the next cleanup time from a cron expression
func calculateNextCleanup(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil
	}

	next := schedule.Next(from)
	return &next
}
