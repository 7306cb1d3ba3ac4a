// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkmint/linkmint/codegen"
	"github.com/linkmint/linkmint/models"
)

// contextKey is the key type for transaction values carried in context
type contextKey string

const TxContextKey contextKey = "tx"

// CodeGenerator draws a short code, checking candidates against exists.
type CodeGenerator interface {
	Generate(ctx context.Context, exists codegen.ExistsFunc) (string, error)
}

// ShortLinkRepository defines persistence operations for short links.
// Lookup methods return (nil, nil) when no matching record exists.
// ByCode, ByUUID and ByOriginalURL filter to live records only
// (valid_until null or in the future); List intentionally does not.
type ShortLinkRepository interface {
	Create(ctx context.Context, originalURL string, validUntil *time.Time) (*models.ShortLink, bool, error)
	Save(ctx context.Context, link *models.ShortLink) error
	ByID(ctx context.Context, id uint) (*models.ShortLink, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.ShortLink, error)
	ByCode(ctx context.Context, code string) (*models.ShortLink, error)
	ByOriginalURL(ctx context.Context, originalURL string) (*models.ShortLink, error)
	List(ctx context.Context, offset, limit int) ([]*models.ShortLink, error)
	Count(ctx context.Context, filter models.ShortLinkFilter) (int64, error)
	Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	IncrementClicks(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error)
	Delete(ctx context.Context, link *models.ShortLink) bool
	IsExpired(link *models.ShortLink) bool
	WithinTransaction(ctx context.Context, fn func(context.Context) error) error
}
