package models

import "time"

// AdClick represents a single observed ad click delivered through the landing redirect.
// Tracking attributes are kept exactly as received for auditing; the pipeline only
// reads AdvertiserID, ClientIP and CreatedAt.
type AdClick struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AdvertiserID   uint      `gorm:"not null;index:idx_ad_clicks_window,priority:1" json:"advertiser_id"`
	ClientIP       string    `gorm:"size:255;not null;index:idx_ad_clicks_window,priority:2" json:"client_ip"`
	DestinationURL *string   `gorm:"size:2048" json:"destination_url,omitempty"`
	Keyword        *string   `gorm:"size:255" json:"keyword,omitempty"`
	MatchType      *string   `gorm:"size:50" json:"match_type,omitempty"`
	NetworkType    *string   `gorm:"size:50" json:"network_type,omitempty"`
	DeviceType     *string   `gorm:"size:50" json:"device_type,omitempty"`
	AdGroupID      *string   `gorm:"size:64" json:"ad_group_id,omitempty"`
	AdID           *string   `gorm:"size:64" json:"ad_id,omitempty"`
	KeywordID      *string   `gorm:"size:64" json:"keyword_id,omitempty"`
	CreativeID     *string   `gorm:"size:64" json:"creative_id,omitempty"`
	Query          *string   `gorm:"size:255" json:"query,omitempty"`
	CreatedAt      time.Time `gorm:"not null;index:idx_ad_clicks_window,priority:3;index:idx_ad_clicks_created_at" json:"created_at"`
}

// TableName returns the table name for AdClick
func (AdClick) TableName() string { return "ad_clicks" }

// AdClickFilter provides filter fields for repository queries
type AdClickFilter struct {
	AdvertiserID  *uint
	ClientIP      *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
