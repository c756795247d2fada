package models

import (
	"errors"
	"time"
)

var (
	ErrRuleWindowInvalid    = errors.New("time window must be greater than zero minutes")
	ErrRuleMaxClicksInvalid = errors.New("max clicks must be at least 1")
)

// BlockingRule is an advertiser's fraud threshold: more than MaxClicks clicks from one
// source within TimeWindowMinutes triggers a block.
type BlockingRule struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AdvertiserID      uint      `gorm:"not null;index:idx_blocking_rules_advertiser_id" json:"advertiser_id"`
	Name              string    `gorm:"size:255;not null" json:"name"`
	TimeWindowMinutes int       `gorm:"not null;default:60" json:"time_window_minutes"`
	MaxClicks         int       `gorm:"not null;default:5" json:"max_clicks"`
	IsActive          *bool     `gorm:"not null;default:true;index:idx_blocking_rules_is_active" json:"is_active"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for BlockingRule
func (BlockingRule) TableName() string { return "blocking_rules" }

// Window returns the rolling window length
func (r BlockingRule) Window() time.Duration {
	return time.Duration(r.TimeWindowMinutes) * time.Minute
}

// Validate checks the rule invariants
func (r BlockingRule) Validate() error {
	if r.TimeWindowMinutes <= 0 {
		return ErrRuleWindowInvalid
	}
	if r.MaxClicks < 1 {
		return ErrRuleMaxClicksInvalid
	}
	return nil
}

// Exceeded reports whether count is over the threshold. Reaching MaxClicks is allowed.
func (r BlockingRule) Exceeded(count int64) bool {
	return count > int64(r.MaxClicks)
}

// BlockingRuleFilter provides filter fields for repository queries
type BlockingRuleFilter struct {
	ID           *uint
	AdvertiserID *uint
	IsActive     *bool
}

// IsRuleInvalid reports whether err is a rule validation failure
func IsRuleInvalid(err error) bool {
	return errors.Is(err, ErrRuleWindowInvalid) || errors.Is(err, ErrRuleMaxClicksInvalid)
}
