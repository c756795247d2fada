package models

import "time"

// Advertiser is a tenant linked to an upstream search-ad customer account.
// Accounts are created by the account linking flow; the click pipeline only reads them.
type Advertiser struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyName     string    `gorm:"size:255;not null" json:"company_name"`
	NaverCustomerID int64     `gorm:"not null;uniqueIndex:uk_advertisers_naver_customer_id" json:"naver_customer_id"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for Advertiser
func (Advertiser) TableName() string { return "advertisers" }

// AdvertiserFilter provides filter fields for repository queries
type AdvertiserFilter struct {
	ID              *uint
	NaverCustomerID *int64
	IsActive        *bool
}
