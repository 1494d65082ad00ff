package api

import (
	"net/http"

	"sms-console/internal/auth"
	"sms-console/internal/inbox"
	"sms-console/internal/models"
	"sms-console/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type InboxHandler struct {
	DB      *gorm.DB
	Service *inbox.Service
	Hub     *ws.Hub
}

func NewInboxHandler(db *gorm.DB, service *inbox.Service, hub *ws.Hub) *InboxHandler {
	return &InboxHandler{DB: db, Service: service, Hub: hub}
}

// OpenInbox starts the poll loops against the user's registered backends and
// returns the first combined snapshot. Reopening restarts the loops with a
// fresh backend list.
func (h *InboxHandler) OpenInbox(c *gin.Context) {
	userID := auth.UserID(c)

	var backends []models.Backend
	if err := h.DB.Where("user_id = ?", userID).Order("created_at").Find(&backends).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(backends) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"backends": []models.Backend{},
			"previews": []inbox.TaggedPreview{},
			"status":   "No backends found for your account",
		})
		return
	}

	previews := h.Service.Open(userID, backends)
	c.JSON(http.StatusOK, gin.H{
		"backends": backends,
		"previews": previews,
	})
}

// GetInbox returns the last good snapshot without triggering a fetch.
func (h *InboxHandler) GetInbox(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Snapshot(auth.UserID(c)))
}

// RefreshInbox forces one aggregation cycle outside the poll timer.
func (h *InboxHandler) RefreshInbox(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Refresh(auth.UserID(c)))
}

func (h *InboxHandler) CloseInbox(c *gin.Context) {
	h.Service.Close(auth.UserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "Inbox closed"})
}

type SelectConversationRequest struct {
	BackendIndex int    `json:"backend_index"`
	Phone        string `json:"phone" binding:"required"`
}

func (h *InboxHandler) SelectConversation(c *gin.Context) {
	var req SelectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.Service.Select(auth.UserID(c), req.BackendIndex, req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *InboxHandler) GetConversation(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Conversation(auth.UserID(c)))
}

func (h *InboxHandler) DeselectConversation(c *gin.Context) {
	h.Service.Deselect(auth.UserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "Conversation closed"})
}

type SendMessageRequest struct {
	BackendIndex int    `json:"backend_index"`
	PhoneNumber  string `json:"phoneNumber" binding:"required"`
	Text         string `json:"text" binding:"required"`
}

// SendMessage relays a message through the chosen backend. On success the
// backend's raw response text is passed through as the status line; the sent
// message itself shows up once the next poll cycle re-fetches the thread.
func (h *InboxHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.Service.Send(c.Request.Context(), auth.UserID(c), req.BackendIndex, req.PhoneNumber, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ServeWs upgrades to a WebSocket that receives inbox_snapshot and
// conversation events for the authenticated user.
func (h *InboxHandler) ServeWs(c *gin.Context) {
	h.Hub.ServeWs(auth.UserID(c), c.Writer, c.Request)
}
