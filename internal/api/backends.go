package api

import (
	"net/http"
	"strings"

	"sms-console/internal/auth"
	"sms-console/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BackendHandler struct {
	DB *gorm.DB
}

func NewBackendHandler(db *gorm.DB) *BackendHandler {
	return &BackendHandler{DB: db}
}

func (h *BackendHandler) ListBackends(c *gin.Context) {
	var backends []models.Backend
	err := h.DB.Where("user_id = ?", auth.UserID(c)).Order("created_at").Find(&backends).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if backends == nil {
		backends = []models.Backend{}
	}
	c.JSON(http.StatusOK, backends)
}

type RegisterBackendRequest struct {
	BaseURL string `json:"base_url" binding:"required"`
}

func (h *BackendHandler) RegisterBackend(c *gin.Context) {
	var req RegisterBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backend := models.Backend{
		UserID:  auth.UserID(c),
		BaseURL: strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"),
	}
	if backend.BaseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_url is required"})
		return
	}
	if err := h.DB.Create(&backend).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, backend)
}

// DeleteBackend unregisters a backend. Previously saved daily limits are not
// re-validated against the reduced capacity.
func (h *BackendHandler) DeleteBackend(c *gin.Context) {
	result := h.DB.Where("id = ? AND user_id = ?", c.Param("id"), auth.UserID(c)).Delete(&models.Backend{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backend not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Backend deleted"})
}
