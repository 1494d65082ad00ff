package models

import (
	"strings"
	"time"
)

const (
	StatusDraft  = "draft"
	StatusActive = "active"
	StatusPaused = "paused"
)

// Campaign represents one SMS outreach campaign
type Campaign struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Status         string    `gorm:"type:varchar(20);default:'draft'" json:"status"` // draft, active, paused
	DailyLimit     int       `gorm:"default:100" json:"daily_limit"`
	StartTime      string    `gorm:"type:varchar(5);default:'09:00'" json:"start_time"` // HH:MM, stored in UTC
	EndTime        string    `gorm:"type:varchar(5);default:'18:00'" json:"end_time"`   // HH:MM, stored in UTC
	DaysOfWeek     string    `gorm:"type:text" json:"days_of_week"`                     // Comma separated day names
	MessageContent string    `gorm:"type:text" json:"message_content"`
	ShareToken     string    `gorm:"type:varchar(64);index" json:"share_token,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Days splits the stored day list; order is not significant.
func (c *Campaign) Days() []string {
	if c.DaysOfWeek == "" {
		return []string{}
	}
	return strings.Split(c.DaysOfWeek, ",")
}

func (c *Campaign) SetDays(days []string) {
	c.DaysOfWeek = strings.Join(days, ",")
}

// Lead represents one message recipient belonging to a campaign
type Lead struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CampaignID      uint      `gorm:"index;not null" json:"campaign_id"`
	Phone           string    `gorm:"type:varchar(32);not null" json:"phone"`
	FirstName       string    `gorm:"type:varchar(255)" json:"first_name"`
	LastName        string    `gorm:"type:varchar(255)" json:"last_name"`
	CompanyName     string    `gorm:"type:varchar(255)" json:"company_name"`
	Personalization string    `gorm:"type:text" json:"personalization"` // JSON map of unmapped CSV columns
	StopSending     bool      `gorm:"default:false" json:"stop_sending"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Lead) TableName() string {
	return "campaign_leads"
}

// Send is a historical record of an attempted message. Rows are written by the
// external dispatch services; this console only reads them for analytics export.
type Send struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CampaignID uint       `gorm:"index;not null" json:"campaign_id"`
	LeadID     uint       `gorm:"index" json:"lead_id"`
	Phone      string     `gorm:"type:varchar(32)" json:"phone"`
	Content    string     `gorm:"type:text" json:"content"`
	Status     string     `gorm:"type:varchar(20)" json:"status"`
	SentAt     *time.Time `json:"sent_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Send) TableName() string {
	return "campaign_sends"
}

// Backend is a user-registered external messaging endpoint. The backend itself
// owns the live conversations; only the base URL is persisted here.
type Backend struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	BaseURL   string    `gorm:"type:text;not null" json:"base_url"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Backend) TableName() string {
	return "backends"
}
