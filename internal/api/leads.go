package api

import (
	"encoding/json"
	"net/http"

	"sms-console/internal/leadcsv"
	"sms-console/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LeadHandler struct {
	DB *gorm.DB
}

func NewLeadHandler(db *gorm.DB) *LeadHandler {
	return &LeadHandler{DB: db}
}

type PreviewImportRequest struct {
	CSV string `json:"csv"`
}

// PreviewImport parses the CSV and proposes a column mapping without
// inserting anything. The caller can adjust the mapping before importing.
func (h *LeadHandler) PreviewImport(c *gin.Context) {
	if _, ok := h.campaign(c); !ok {
		return
	}

	var req PreviewImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := leadcsv.Parse(req.CSV)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"headers":   doc.Headers,
		"mapping":   leadcsv.DetectMapping(doc.Headers),
		"row_count": len(doc.Rows),
	})
}

type ImportLeadsRequest struct {
	CSV     string          `json:"csv"`
	Mapping leadcsv.Mapping `json:"mapping"`
}

// ImportLeads parses, filters and batch-inserts leads. Rows failing the phone
// check are counted and dropped; zero accepted rows is a no-op, not an error.
// A store failure aborts the whole batch and is surfaced verbatim.
func (h *LeadHandler) ImportLeads(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}

	var req ImportLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := leadcsv.Parse(req.CSV)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, invalid, err := leadcsv.BuildLeads(doc, req.Mapping)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"status":   "No valid phone numbers found",
			"imported": 0,
			"invalid":  invalid,
		})
		return
	}

	leads := make([]models.Lead, 0, len(records))
	for _, rec := range records {
		personalization, err := json.Marshal(rec.Personalization)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		leads = append(leads, models.Lead{
			CampaignID:      campaign.ID,
			Phone:           rec.Phone,
			FirstName:       rec.FirstName,
			LastName:        rec.LastName,
			CompanyName:     rec.CompanyName,
			Personalization: string(personalization),
		})
	}

	if err := h.DB.Create(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error inserting leads: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":   "Imported leads successfully",
		"imported": len(leads),
		"invalid":  invalid,
	})
}

func (h *LeadHandler) ListLeads(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}

	var leads []models.Lead
	if err := h.DB.Where("campaign_id = ?", campaign.ID).Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	c.JSON(http.StatusOK, leads)
}

type DeleteLeadsRequest struct {
	IDs []uint `json:"ids"`
}

// DeleteLeads removes one or more user-selected leads from the campaign.
func (h *LeadHandler) DeleteLeads(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}

	var req DeleteLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No lead ids given"})
		return
	}

	result := h.DB.Where("campaign_id = ? AND id IN ?", campaign.ID, req.IDs).Delete(&models.Lead{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Leads deleted", "deleted": result.RowsAffected})
}

type UpdateLeadRequest struct {
	StopSending bool `json:"stop_sending"`
}

func (h *LeadHandler) UpdateLead(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}

	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.DB.Model(&models.Lead{}).
		Where("campaign_id = ? AND id = ?", campaign.ID, c.Param("leadId")).
		Update("stop_sending", req.StopSending)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Lead updated"})
}

func (h *LeadHandler) campaign(c *gin.Context) (*models.Campaign, bool) {
	return ownedCampaign(h.DB, c)
}
