package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/linkmint/linkmint/models"
	"github.com/linkmint/linkmint/utils"
	"gorm.io/gorm"
)

// createRetries bounds re-attempts when an insert loses a race on the
// short code column and a fresh code must be drawn.
const createRetries = 3

// ShortLinkRepositoryImpl implements ShortLinkRepository
type ShortLinkRepositoryImpl struct {
	*BaseRepository[models.ShortLink, models.ShortLinkFilter]
	gen CodeGenerator
}

func NewShortLinkRepository(db *gorm.DB, gen CodeGenerator) ShortLinkRepository {
	return &ShortLinkRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ShortLink, models.ShortLinkFilter](db),
		gen:            gen,
	}
}

// liveScope restricts a query to records whose expiry is unset or in the future.
func liveScope(db *gorm.DB) *gorm.DB {
	return db.Where("valid_until IS NULL OR valid_until > ?", utils.UTCNow())
}

// Create returns the existing live record for originalURL when one
// exists, otherwise inserts a new record with a freshly drawn code.
// The boolean reports whether a new record was inserted.
// A uniqueness violation raised by a concurrent identical insert is
// resolved by re-querying for the winning record, never surfaced.
func (r *ShortLinkRepositoryImpl) Create(ctx context.Context, originalURL string, validUntil *time.Time) (*models.ShortLink, bool, error) {
	if existing, err := r.ByOriginalURL(ctx, originalURL); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	for attempt := 0; ; attempt++ {
		code, err := r.gen.Generate(ctx, r.CodeExists)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate short code: %w", err)
		}

		row := &models.ShortLink{
			UUID:        uuid.New(),
			OriginalURL: originalURL,
			Code:        code,
			ValidUntil:  utils.TimeToUTCPtr(validUntil),
			CreatedAt:   utils.UTCNow(),
			UpdatedAt:   utils.UTCNow(),
		}

		err = r.Save(ctx, row)
		if err == nil {
			return row, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}

		// Either a concurrent insert of the same URL won, or the drawn
		// code collided with one reserved in the meantime.
		winner, qerr := r.ByOriginalURL(ctx, originalURL)
		if qerr != nil {
			return nil, false, qerr
		}
		if winner != nil {
			return winner, false, nil
		}
		if attempt >= createRetries {
			return nil, false, fmt.Errorf("failed to insert short link after %d code retries: %w", createRetries, err)
		}
		log.Printf("short code %q collided on insert, retrying with a fresh code", code)
	}
}

func (r *ShortLinkRepositoryImpl) ByID(ctx context.Context, id uint) (*models.ShortLink, error) {
	db := r.getDB(ctx)
	var row models.ShortLink
	if err := liveScope(db).Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find short link by ID %d: %w", id, err)
	}
	return &row, nil
}

func (r *ShortLinkRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.ShortLink, error) {
	return r.firstLive(ctx, "uuid = ?", id)
}

func (r *ShortLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	return r.firstLive(ctx, "code = ?", code)
}

func (r *ShortLinkRepositoryImpl) ByOriginalURL(ctx context.Context, originalURL string) (*models.ShortLink, error) {
	return r.firstLive(ctx, "original_url = ?", originalURL)
}

func (r *ShortLinkRepositoryImpl) firstLive(ctx context.Context, query string, arg any) (*models.ShortLink, error) {
	db := r.getDB(ctx)
	var row models.ShortLink
	err := liveScope(db.Model(&models.ShortLink{})).Where(query, arg).Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find short link: %w", err)
	}
	return &row, nil
}

// List returns all records in insertion order, expired ones included.
func (r *ShortLinkRepositoryImpl) List(ctx context.Context, offset, limit int) ([]*models.ShortLink, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ShortLink{}).Order("id ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.ShortLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list short links: %w", err)
	}
	return rows, nil
}

func (r *ShortLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.ShortLinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Code != nil {
		db = db.Where("code = ?", *f.Code)
	}
	if f.OriginalURL != nil {
		db = db.Where("original_url = ?", *f.OriginalURL)
	}
	if f.LiveOnly {
		db = liveScope(db)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ShortLinkRepositoryImpl) Count(ctx context.Context, filter models.ShortLinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShortLink{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count short links: %w", err)
	}
	return count, nil
}

func (r *ShortLinkRepositoryImpl) Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// CodeExists reports whether a code was ever issued, live or not.
// Codes are permanently reserved, so no liveness filter applies here.
func (r *ShortLinkRepositoryImpl) CodeExists(ctx context.Context, code string) (bool, error) {
	return r.Exists(ctx, models.ShortLinkFilter{Code: utils.ToPtr(code)})
}

// IncrementClicks atomically bumps the click counter and the updated
// timestamp, then returns the refreshed entity.
func (r *ShortLinkRepositoryImpl) IncrementClicks(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.ShortLink{}).
		Where("id = ?", link.ID).
		UpdateColumns(map[string]any{
			"clicks":     gorm.Expr("clicks + 1"),
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to increment clicks for short link %d: %w", link.ID, err)
	}

	var refreshed models.ShortLink
	if err = db.First(&refreshed, link.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload short link %d: %w", link.ID, err)
	}
	return &refreshed, nil
}

// Delete hard-deletes the record. Storage failures roll back and are
// reported as false rather than an error.
func (r *ShortLinkRepositoryImpl) Delete(ctx context.Context, link *models.ShortLink) bool {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		log.Printf("failed to open transaction for short link delete: %v", err)
		return false
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Delete(&models.ShortLink{}, link.ID)
	if res.Error != nil {
		err = res.Error
		log.Printf("failed to delete short link %d: %v", link.ID, res.Error)
		return false
	}
	return res.RowsAffected > 0
}

// IsExpired reports whether the record's expiry is set and strictly in the past.
func (r *ShortLinkRepositoryImpl) IsExpired(link *models.ShortLink) bool {
	return utils.IsExpiredPtr(link.ValidUntil)
}
