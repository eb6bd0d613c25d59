// Package models contains domain entities and business models for the
// billboard inventory pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Billboard is one canonical out-of-home inventory unit after normalization.
// The vendor-assigned BillboardID is the stable identity; re-ingesting the
// same vendor export updates in place rather than duplicating.
type Billboard struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	BillboardID string `gorm:"size:100;not null;uniqueIndex:uk_billboards_billboard_id" json:"billboard_id"`
	RunID       string `gorm:"size:100;index:idx_billboards_run_id" json:"run_id"`

	FormatType   string     `gorm:"size:50;index:idx_billboards_format_type" json:"format_type"`
	LightingType string     `gorm:"size:50" json:"lighting_type"`
	CategoryID   *uuid.UUID `gorm:"type:uuid" json:"category_id,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      *string  `gorm:"size:100;index:idx_billboards_city" json:"city,omitempty"`
	District  *string  `gorm:"size:100" json:"district,omitempty"`
	Area      *string  `gorm:"size:150" json:"area,omitempty"`
	Location  *string  `gorm:"size:500" json:"location,omitempty"`

	WidthFt            *float64 `json:"width_ft,omitempty"`
	HeightFt           *float64 `json:"height_ft,omitempty"`
	Quantity           *int     `json:"quantity,omitempty"`
	FrequencyPerMinute *int     `json:"frequency_per_minute,omitempty"`

	BaseRatePerMonth *float64 `json:"base_rate_per_month,omitempty"`
	BaseRatePerUnit  *float64 `json:"base_rate_per_unit,omitempty"`
	CardRatePerMonth *float64 `json:"card_rate_per_month,omitempty"`
	CardRatePerUnit  *float64 `json:"card_rate_per_unit,omitempty"`

	ImageURLs pq.StringArray `gorm:"type:text[]" json:"image_urls,omitempty"`

	ProfileStatus string `gorm:"size:20;index:idx_billboards_profile_status" json:"profile_status"`
	ProfileError  *string `gorm:"size:1000" json:"profile_error,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Billboard) TableName() string {
	return "billboards"
}

// Profile status values.
const (
	ProfileStatusPending = "pending"
	ProfileStatusSuccess = "success"
	ProfileStatusError   = "error"
)
