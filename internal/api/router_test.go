package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"sms-console/internal/auth"
	"sms-console/internal/database"
	"sms-console/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testUserID = "user-1"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One shared connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// newTestRouter wires the handlers behind a stub auth middleware that fixes
// the user id, so tests exercise the real routes without minting tokens.
func newTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	campaignHandler := NewCampaignHandler(db, time.UTC)
	leadHandler := NewLeadHandler(db)
	backendHandler := NewBackendHandler(db)

	r.GET("/api/campaigns/shared/:token", campaignHandler.GetSharedCampaign)

	apiGroup := r.Group("/api")
	apiGroup.Use(func(c *gin.Context) {
		auth.SetUserID(c, testUserID)
		c.Next()
	})
	{
		apiGroup.GET("/campaigns", campaignHandler.ListCampaigns)
		apiGroup.POST("/campaigns", campaignHandler.CreateCampaign)
		apiGroup.GET("/campaigns/:id", campaignHandler.GetCampaign)
		apiGroup.PUT("/campaigns/:id", campaignHandler.RenameCampaign)
		apiGroup.DELETE("/campaigns/:id", campaignHandler.DeleteCampaign)
		apiGroup.POST("/campaigns/:id/duplicate", campaignHandler.DuplicateCampaign)
		apiGroup.POST("/campaigns/:id/launch", campaignHandler.LaunchCampaign)
		apiGroup.POST("/campaigns/:id/share", campaignHandler.ShareCampaign)
		apiGroup.PUT("/campaigns/:id/schedule", campaignHandler.SaveSchedule)
		apiGroup.GET("/campaigns/:id/analytics.csv", campaignHandler.ExportAnalytics)

		apiGroup.GET("/campaigns/:id/leads", leadHandler.ListLeads)
		apiGroup.POST("/campaigns/:id/leads/preview", leadHandler.PreviewImport)
		apiGroup.POST("/campaigns/:id/leads/import", leadHandler.ImportLeads)
		apiGroup.POST("/campaigns/:id/leads/delete", leadHandler.DeleteLeads)
		apiGroup.PUT("/campaigns/:id/leads/:leadId", leadHandler.UpdateLead)

		apiGroup.GET("/backends", backendHandler.ListBackends)
		apiGroup.POST("/backends", backendHandler.RegisterBackend)
		apiGroup.DELETE("/backends/:id", backendHandler.DeleteBackend)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createCampaign(t *testing.T, db *gorm.DB, userID, name string) *models.Campaign {
	t.Helper()
	campaign := models.Campaign{UserID: userID, Name: name, Status: models.StatusDraft}
	require.NoError(t, db.Create(&campaign).Error)
	return &campaign
}
