package main

import (
	"log"
	"time"

	"sms-console/internal/api"
	"sms-console/internal/auth"
	"sms-console/internal/backendapi"
	"sms-console/internal/config"
	"sms-console/internal/database"
	"sms-console/internal/inbox"
	"sms-console/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be configured")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Unknown CONSOLE_TIMEZONE %q, using local time", cfg.Timezone)
		loc = time.Local
	}

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	hub := ws.NewHub()
	go hub.Run()

	backendClient := backendapi.NewClient()
	inboxService := inbox.NewService(backendClient, hub, cfg.PollInterval)

	campaignHandler := api.NewCampaignHandler(database.GormDB, loc)
	leadHandler := api.NewLeadHandler(database.GormDB)
	backendHandler := api.NewBackendHandler(database.GormDB)
	inboxHandler := api.NewInboxHandler(database.GormDB, inboxService, hub)

	// Shared campaign view is public by design
	r.GET("/api/campaigns/shared/:token", campaignHandler.GetSharedCampaign)

	apiGroup := r.Group("/api")
	apiGroup.Use(auth.Middleware(cfg.JWTSecret))
	{
		// Campaign Routes
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

		// Lead Routes
		apiGroup.GET("/campaigns/:id/leads", leadHandler.ListLeads)
		apiGroup.POST("/campaigns/:id/leads/preview", leadHandler.PreviewImport)
		apiGroup.POST("/campaigns/:id/leads/import", leadHandler.ImportLeads)
		apiGroup.POST("/campaigns/:id/leads/delete", leadHandler.DeleteLeads)
		apiGroup.PUT("/campaigns/:id/leads/:leadId", leadHandler.UpdateLead)

		// Backend Registry Routes
		apiGroup.GET("/backends", backendHandler.ListBackends)
		apiGroup.POST("/backends", backendHandler.RegisterBackend)
		apiGroup.DELETE("/backends/:id", backendHandler.DeleteBackend)

		// Unified Inbox Routes
		apiGroup.POST("/inbox/open", inboxHandler.OpenInbox)
		apiGroup.GET("/inbox", inboxHandler.GetInbox)
		apiGroup.POST("/inbox/refresh", inboxHandler.RefreshInbox)
		apiGroup.DELETE("/inbox", inboxHandler.CloseInbox)
		apiGroup.POST("/inbox/select", inboxHandler.SelectConversation)
		apiGroup.GET("/inbox/conversation", inboxHandler.GetConversation)
		apiGroup.POST("/inbox/deselect", inboxHandler.DeselectConversation)
		apiGroup.POST("/inbox/send", inboxHandler.SendMessage)
		apiGroup.GET("/inbox/ws", inboxHandler.ServeWs)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
