package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"sms-console/internal/auth"
	"sms-console/internal/models"
	"sms-console/internal/schedule"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Texts a single backend can carry per day; the persisted daily limit is
// clamped to backends × this value at save time.
const perBackendDailyCapacity = 100

type CampaignHandler struct {
	DB              *gorm.DB
	DefaultLocation *time.Location
}

func NewCampaignHandler(db *gorm.DB, loc *time.Location) *CampaignHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CampaignHandler{DB: db, DefaultLocation: loc}
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	var campaigns []models.Campaign
	err := h.DB.Where("user_id = ?", auth.UserID(c)).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Return empty array instead of null
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	c.JSON(http.StatusOK, campaigns)
}

type CreateCampaignRequest struct {
	Name string `json:"name"`
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a campaign name"})
		return
	}

	campaign := models.Campaign{
		UserID: auth.UserID(c),
		Name:   name,
		Status: models.StatusDraft,
	}
	if err := h.DB.Create(&campaign).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating campaign: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// GetCampaign returns a campaign with its leads. The stored UTC send window
// is additionally rendered in wall-clock time, using the tz query parameter
// when present.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
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

	loc := h.location(c.Query("tz"))
	startLocal, err := schedule.ToLocal(campaign.StartTime, loc)
	if err != nil {
		startLocal = campaign.StartTime
	}
	endLocal, err := schedule.ToLocal(campaign.EndTime, loc)
	if err != nil {
		endLocal = campaign.EndTime
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign":         campaign,
		"leads":            leads,
		"start_time_local": startLocal,
		"end_time_local":   endLocal,
		"days_of_week":     campaign.Days(),
	})
}

type RenameCampaignRequest struct {
	Name string `json:"name"`
}

func (h *CampaignHandler) RenameCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	var req RenameCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a campaign name"})
		return
	}

	if err := h.DB.Model(campaign).Update("name", name).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Campaign renamed"})
}

// DeleteCampaign removes the campaign and its dependent rows as an explicit
// ordered cascade: leads, then sends, then the campaign itself. A failure
// mid-sequence leaves the earlier deletes committed; the error is surfaced to
// the caller as-is rather than retried.
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	if err := h.DB.Where("campaign_id = ?", campaign.ID).Delete(&models.Lead{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting leads: " + err.Error()})
		return
	}
	if err := h.DB.Where("campaign_id = ?", campaign.ID).Delete(&models.Send{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting sends: " + err.Error()})
		return
	}
	if err := h.DB.Delete(campaign).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting campaign: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Campaign deleted"})
}

// DuplicateCampaign copies the campaign row and then its leads. If the lead
// copy fails the new campaign row stays committed; that inconsistency is
// reported, not rolled back.
func (h *CampaignHandler) DuplicateCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	dup := models.Campaign{
		UserID:         campaign.UserID,
		Name:           campaign.Name + " (copy)",
		Status:         models.StatusDraft,
		DailyLimit:     campaign.DailyLimit,
		StartTime:      campaign.StartTime,
		EndTime:        campaign.EndTime,
		DaysOfWeek:     campaign.DaysOfWeek,
		MessageContent: campaign.MessageContent,
	}
	if err := h.DB.Create(&dup).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error duplicating campaign: " + err.Error()})
		return
	}

	var leads []models.Lead
	if err := h.DB.Where("campaign_id = ?", campaign.ID).Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Campaign duplicated but leads could not be read: " + err.Error()})
		return
	}
	if len(leads) > 0 {
		copies := make([]models.Lead, 0, len(leads))
		for _, l := range leads {
			copies = append(copies, models.Lead{
				CampaignID:      dup.ID,
				Phone:           l.Phone,
				FirstName:       l.FirstName,
				LastName:        l.LastName,
				CompanyName:     l.CompanyName,
				Personalization: l.Personalization,
				StopSending:     l.StopSending,
			})
		}
		if err := h.DB.Create(&copies).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Campaign duplicated but leads failed to copy: " + err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, dup)
}

// LaunchCampaign moves a campaign to active. One-way; there is no pause or
// revert path.
func (h *CampaignHandler) LaunchCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	if err := h.DB.Model(campaign).Update("status", models.StatusActive).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error launching campaign: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Campaign launched"})
}

// ShareCampaign mints a share token for read-only access to the campaign.
func (h *CampaignHandler) ShareCampaign(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	token := uuid.NewString()
	if err := h.DB.Model(campaign).Update("share_token", token).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_token": token})
}

// GetSharedCampaign serves the read-only shared view; no auth required.
func (h *CampaignHandler) GetSharedCampaign(c *gin.Context) {
	token := c.Param("token")
	var campaign models.Campaign
	if err := h.DB.Where("share_token = ? AND share_token <> ''", token).First(&campaign).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shared campaign not found"})
		return
	}

	var leadCount int64
	h.DB.Model(&models.Lead{}).Where("campaign_id = ?", campaign.ID).Count(&leadCount)

	c.JSON(http.StatusOK, gin.H{
		"name":         campaign.Name,
		"status":       campaign.Status,
		"lead_count":   leadCount,
		"days_of_week": campaign.Days(),
	})
}

type SaveScheduleRequest struct {
	Name           string   `json:"name"`
	DailyLimit     int      `json:"daily_limit"`
	StartTime      string   `json:"start_time"` // wall-clock HH:MM
	EndTime        string   `json:"end_time"`   // wall-clock HH:MM
	DaysOfWeek     []string `json:"days_of_week"`
	MessageContent string   `json:"message_content"`
	Timezone       string   `json:"timezone"`
}

// SaveSchedule persists the send window and message template. Times arrive as
// wall-clock HH:MM and are stored in UTC. The daily limit is clamped to the
// capacity of the user's registered backends at this moment only; a lower
// value is substituted silently.
func (h *CampaignHandler) SaveSchedule(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	var req SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a campaign name"})
		return
	}

	loc := h.location(req.Timezone)
	startUTC, err := schedule.ToUTC(req.StartTime, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	endUTC, err := schedule.ToUTC(req.EndTime, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var backendCount int64
	if err := h.DB.Model(&models.Backend{}).Where("user_id = ?", auth.UserID(c)).Count(&backendCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	maxAllowed := int(backendCount) * perBackendDailyCapacity
	safeDailyLimit := req.DailyLimit
	if safeDailyLimit > maxAllowed {
		safeDailyLimit = maxAllowed
	}

	updates := map[string]interface{}{
		"name":            name,
		"daily_limit":     safeDailyLimit,
		"start_time":      startUTC,
		"end_time":        endUTC,
		"days_of_week":    strings.Join(req.DaysOfWeek, ","),
		"message_content": req.MessageContent,
	}
	if err := h.DB.Model(campaign).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating schedule: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Schedule saved", "daily_limit": safeDailyLimit})
}

// ExportAnalytics streams the campaign's send history as a CSV download.
func (h *CampaignHandler) ExportAnalytics(c *gin.Context) {
	campaign, ok := ownedCampaign(h.DB, c)
	if !ok {
		return
	}

	var sends []models.Send
	if err := h.DB.Where("campaign_id = ?", campaign.ID).Order("created_at").Find(&sends).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Plain comma-delimited rows with CRLF endings, no quoting.
	csv := "ID,Lead ID,Phone,Content,Status,Sent At\r\n"
	for _, s := range sends {
		sentAt := ""
		if s.SentAt != nil {
			sentAt = s.SentAt.UTC().Format(time.RFC3339)
		}
		csv += fmt.Sprintf("%d,%d,%s,%s,%s,%s\r\n", s.ID, s.LeadID, s.Phone, s.Content, s.Status, sentAt)
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=campaign_%d_analytics.csv", campaign.ID))
	c.String(http.StatusOK, csv)
}

// ownedCampaign loads the campaign in the id path param and checks it belongs
// to the authenticated user. Writes the error response itself.
func ownedCampaign(db *gorm.DB, c *gin.Context) (*models.Campaign, bool) {
	var campaign models.Campaign
	err := db.Where("id = ? AND user_id = ?", c.Param("id"), auth.UserID(c)).First(&campaign).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return nil, false
	}
	return &campaign, true
}

func (h *CampaignHandler) location(tz string) *time.Location {
	if tz == "" {
		return h.DefaultLocation
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("Unknown timezone %q, falling back to default", tz)
		return h.DefaultLocation
	}
	return loc
}
