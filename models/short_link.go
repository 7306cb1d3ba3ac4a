// Package models contains the persisted entities of the application
package models

import (
	"time"

	"github.com/google/uuid"
)

// ShortLink maps a short code to an original URL and tracks clicks.
// Code is unique across all records ever created and is never recycled,
// even after the owning record expires or is deleted.
// OriginalURL carries a partial unique index scoped to non-expiring rows;
// dedup of expiring rows happens at the query level (see repository.Create).
// ValidUntil nil means the link never expires.
type ShortLink struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_short_links_uuid" json:"id"`
	OriginalURL string     `gorm:"type:text;not null;uniqueIndex:uk_short_links_original_url,where:valid_until IS NULL" json:"original_url"`
	Code        string     `gorm:"size:64;not null;uniqueIndex:uk_short_links_code" json:"shortened_url"`
	Clicks      int64      `gorm:"not null;default:0" json:"clicks"`
	ValidUntil  *time.Time `gorm:"index:idx_short_links_valid_until" json:"valid_until,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_short_links_created_at" json:"created"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated"`
}

// TableName returns the table name for ShortLink
func (ShortLink) TableName() string { return "short_links" }

// IsLive reports whether the record participates in lookups at the given time.
func (s *ShortLink) IsLive(now time.Time) bool {
	return s.ValidUntil == nil || s.ValidUntil.After(now)
}

// ShortLinkFilter provides filter fields for repository queries
type ShortLinkFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Code          *string
	OriginalURL   *string
	LiveOnly      bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
