package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkmint/linkmint/models"
	"github.com/linkmint/linkmint/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	db *gorm.DB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *gorm.DB) *TestFixtures {
	return &TestFixtures{db: db}
}

const fixtureCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns a random six character short code
func (f *TestFixtures) RandomCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = fixtureCodeAlphabet[rand.Intn(len(fixtureCodeAlphabet))]
	}
	return string(b)
}

// RandomURL returns a unique http URL for test records
func (f *TestFixtures) RandomURL() string {
	return fmt.Sprintf("https://example.com/page/%d-%d", time.Now().UnixNano(), rand.Intn(100000))
}

// CreateShortLink inserts a live short link with a random code and URL
func (f *TestFixtures) CreateShortLink() (*models.ShortLink, error) {
	return f.insert(f.RandomURL(), nil)
}

// CreateShortLinkForURL inserts a live short link for a specific URL
func (f *TestFixtures) CreateShortLinkForURL(originalURL string) (*models.ShortLink, error) {
	return f.insert(originalURL, nil)
}

// CreateExpiringShortLink inserts a short link that expires after the given duration
func (f *TestFixtures) CreateExpiringShortLink(ttl time.Duration) (*models.ShortLink, error) {
	return f.insert(f.RandomURL(), utils.UTCNowAddPtr(ttl))
}

// CreateExpiredShortLink inserts a short link whose validity window has already passed
func (f *TestFixtures) CreateExpiredShortLink() (*models.ShortLink, error) {
	return f.insert(f.RandomURL(), utils.UTCNowAddPtr(-time.Hour))
}

func (f *TestFixtures) insert(originalURL string, validUntil *time.Time) (*models.ShortLink, error) {
	link := &models.ShortLink{
		UUID:        uuid.New(),
		OriginalURL: originalURL,
		Code:        f.RandomCode(),
		ValidUntil:  validUntil,
		CreatedAt:   utils.UTCNow(),
		UpdatedAt:   utils.UTCNow(),
	}
	if err := f.db.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create short link fixture: %w", err)
	}
	return link, nil
}
