package dto

import (
	"time"

	"github.com/google/uuid"
)

// ShortLinkDTO is the serialized form of a short link record
type ShortLinkDTO struct {
	ID           uuid.UUID  `json:"id"`
	OriginalURL  string     `json:"original_url"`
	ShortenedURL string     `json:"shortened_url"`
	Clicks       int64      `json:"clicks"`
	Created      time.Time  `json:"created"`
	Updated      time.Time  `json:"updated"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
}

// CreateShortLinkRequest defines input for creating a short link
// ValidUntil is optional; omitted means the link never expires
type CreateShortLinkRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,max=2048"`
	ValidUntil  *time.Time `json:"valid_until,omitempty" validate:"omitempty"`
}

// CreateShortLinkResponse reports the created (or deduplicated) record
type CreateShortLinkResponse struct {
	Message string       `json:"message"`
	Item    ShortLinkDTO `json:"item"`
	Created bool         `json:"created"`
}

// ListShortLinksRequest defines pagination inputs for the admin listing
type ListShortLinksRequest struct {
	Skip  int `json:"skip" validate:"gte=0"`
	Limit int `json:"limit" validate:"gte=1,lte=1000"`
}

// ListShortLinksResponse carries an unfiltered page of records
type ListShortLinksResponse struct {
	Message string         `json:"message"`
	Items   []ShortLinkDTO `json:"items"`
	Total   int64          `json:"total"`
}

// DeleteShortLinkResponse reports whether a live record was deleted
type DeleteShortLinkResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// ExpiryCheckResponse reports the expiry state of a known code
type ExpiryCheckResponse struct {
	Code    string `json:"code"`
	Expired bool   `json:"expired"`
}
