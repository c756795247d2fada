package models

import (
	"time"

	"github.com/google/uuid"
)

// Blocked IP row states. A pending row is a reservation that is not visible as a
// block; it only holds the (advertiser, ip) unique key until the upstream answers.
// An unconfirmed row is a block the upstream accepted whose confirmation failed; it
// keeps holding the key and is never reaped.
const (
	BlockStatusPending     = "pending"
	BlockStatusConfirmed   = "confirmed"
	BlockStatusUnconfirmed = "unconfirmed"
)

// BlockedIP is the durable outcome of a block decision.
// At most one row exists per (AdvertiserID, IPAddress).
type BlockedIP struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AdvertiserID     uint       `gorm:"not null;uniqueIndex:uk_blocked_ip_logs_advertiser_ip,priority:1" json:"advertiser_id"`
	IPAddress        string     `gorm:"size:255;not null;uniqueIndex:uk_blocked_ip_logs_advertiser_ip,priority:2" json:"ip_address"`
	Memo             *string    `gorm:"size:255" json:"memo,omitempty"`
	Status           string     `gorm:"size:16;not null;index:idx_blocked_ip_logs_status" json:"status"`
	ReservationToken uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_blocked_ip_logs_reservation_token" json:"-"`
	BlockedAt        *time.Time `gorm:"index:idx_blocked_ip_logs_blocked_at" json:"blocked_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for BlockedIP
func (BlockedIP) TableName() string { return "blocked_ip_logs" }

// IsConfirmed reports whether the row is a visible block
func (b BlockedIP) IsConfirmed() bool {
	return b.Status == BlockStatusConfirmed
}

// BlockedIPFilter provides filter fields for repository queries
type BlockedIPFilter struct {
	AdvertiserID  *uint
	IPAddress     *string
	Status        *string
	CreatedBefore *time.Time
}
