package handlers

import (
	"errors"
	"net/http"

	"DF-APPT/internal/models"
	"DF-APPT/internal/services"
	"DF-APPT/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TemplatesResponse struct {
	Templates []models.TemplateInfo `json:"templates"`
}

type PlaceholderResponse struct {
	TemplateID   string   `json:"template_id"`
	Placeholders []string `json:"placeholders"`
}

// TemplateHandler exposes the rule table and template placeholders.
type TemplateHandler struct {
	templates *services.TemplateService
	logger    *zap.Logger
}

func NewTemplateHandler(templates *services.TemplateService, logger *zap.Logger) *TemplateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateHandler{templates: templates, logger: logger}
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, TemplatesResponse{
		Templates: h.templates.ListTemplates(c.Request.Context()),
	})
}

func (h *TemplateHandler) GetPlaceholders(c *gin.Context) {
	templateID := c.Param("templateId")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template ID is required"})
		return
	}

	placeholders, err := h.templates.GetPlaceholders(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, storage.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		RequestLogger(c, h.logger).Error("Failed to extract placeholders",
			zap.String("template", templateID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to extract placeholders"})
		return
	}
	if placeholders == nil {
		placeholders = []string{}
	}

	c.JSON(http.StatusOK, PlaceholderResponse{
		TemplateID:   templateID,
		Placeholders: placeholders,
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
