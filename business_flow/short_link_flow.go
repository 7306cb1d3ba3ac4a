package businessflow

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"

	"github.com/linkmint/linkmint/app/dto"
	"github.com/linkmint/linkmint/cache"
	"github.com/linkmint/linkmint/models"
	"github.com/linkmint/linkmint/repository"
	"github.com/linkmint/linkmint/utils"
)

var (
	shortLinksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "short_links_created_total",
			Help: "Short link creations partitioned by outcome (created, deduplicated)",
		},
		[]string{"outcome"},
	)

	shortLinkResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "short_link_resolves_total",
			Help: "Short link resolutions partitioned by outcome (hit, miss)",
		},
		[]string{"outcome"},
	)
)

// DomainChecker reports whether a host is on the domain blacklist.
// Implementations must be bounded in time and degrade rather than block.
type DomainChecker interface {
	IsBlacklisted(ctx context.Context, host string) (bool, error)
}

// ShortLinkFlow orchestrates code generation, persistence and the
// listing cache over a single request lifecycle. It holds no persisted
// state of its own.
//
// Resolve collapses expired and nonexistent codes into the same
// not-found outcome; Peek and IsExpired are the administrative reads
// that do not mutate click counts.
type ShortLinkFlow interface {
	Shorten(ctx context.Context, req *dto.CreateShortLinkRequest) (*dto.CreateShortLinkResponse, error)
	Resolve(ctx context.Context, code string) (*dto.ShortLinkDTO, error)
	Peek(ctx context.Context, code string) (*dto.ShortLinkDTO, error)
	PeekByID(ctx context.Context, id uuid.UUID) (*dto.ShortLinkDTO, error)
	Delete(ctx context.Context, code string) (*dto.DeleteShortLinkResponse, error)
	IsExpired(ctx context.Context, code string) (*dto.ExpiryCheckResponse, error)
	List(ctx context.Context, req *dto.ListShortLinksRequest) (*dto.ListShortLinksResponse, error)
	ExportExcel(ctx context.Context) (string, []byte, error)
}

type ShortLinkFlowImpl struct {
	repo      repository.ShortLinkRepository
	blacklist DomainChecker
	listCache *cache.TimedCache
}

func NewShortLinkFlow(repo repository.ShortLinkRepository, blacklist DomainChecker, listCache *cache.TimedCache) ShortLinkFlow {
	return &ShortLinkFlowImpl{
		repo:      repo,
		blacklist: blacklist,
		listCache: listCache,
	}
}

// Shorten validates the target URL, applies the domain blacklist and
// delegates to the repository's dedup-or-insert path. Submitting the
// same URL twice while the first record is live returns the same code
// both times; once it expires a fresh record with a new code is created.
func (f *ShortLinkFlowImpl) Shorten(ctx context.Context, req *dto.CreateShortLinkRequest) (*dto.CreateShortLinkResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request body is required", nil)
	}
	host, err := validateOriginalURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}
	if err := f.checkBlacklist(ctx, host); err != nil {
		return nil, err
	}

	row, created, err := f.repo.Create(ctx, strings.TrimSpace(req.OriginalURL), req.ValidUntil)
	if err != nil {
		return nil, NewBusinessError("CREATE_SHORT_LINK_FAILED", "Failed to create short link", err)
	}

	message := "Short link already exists"
	outcome := "deduplicated"
	if created {
		message = "Short link created"
		outcome = "created"
	}
	shortLinksCreatedTotal.WithLabelValues(outcome).Inc()

	return &dto.CreateShortLinkResponse{
		Message: message,
		Item:    mapShortLinkDTO(row),
		Created: created,
	}, nil
}

// Resolve looks up a live record by code and tracks the click. Expired
// and unknown codes are indistinguishable to the caller.
func (f *ShortLinkFlowImpl) Resolve(ctx context.Context, code string) (*dto.ShortLinkDTO, error) {
	row, err := f.repo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if row == nil {
		shortLinkResolvesTotal.WithLabelValues("miss").Inc()
		return nil, ErrShortLinkNotFound
	}
	refreshed, err := f.repo.IncrementClicks(ctx, row)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_TRACK_FAILED", "Failed to track short link click", err)
	}
	shortLinkResolvesTotal.WithLabelValues("hit").Inc()
	out := mapShortLinkDTO(refreshed)
	return &out, nil
}

// Peek returns the live record without touching the click counter.
func (f *ShortLinkFlowImpl) Peek(ctx context.Context, code string) (*dto.ShortLinkDTO, error) {
	row, err := f.repo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if row == nil {
		return nil, ErrShortLinkNotFound
	}
	out := mapShortLinkDTO(row)
	return &out, nil
}

// PeekByID returns the live record for a public identifier without
// touching the click counter.
func (f *ShortLinkFlowImpl) PeekByID(ctx context.Context, id uuid.UUID) (*dto.ShortLinkDTO, error) {
	row, err := f.repo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if row == nil {
		return nil, ErrShortLinkNotFound
	}
	out := mapShortLinkDTO(row)
	return &out, nil
}

// Delete removes the live record for code. A missing or expired code
// yields Deleted=false rather than an error. Lookup and delete run in
// one transaction so a record resolved live cannot vanish in between.
func (f *ShortLinkFlowImpl) Delete(ctx context.Context, code string) (*dto.DeleteShortLinkResponse, error) {
	resp := &dto.DeleteShortLinkResponse{Message: "No live short link matches", Deleted: false}
	err := f.repo.WithinTransaction(ctx, func(txCtx context.Context) error {
		row, err := f.repo.ByCode(txCtx, code)
		if err != nil {
			return NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
		}
		if row == nil {
			return nil
		}
		if f.repo.Delete(txCtx, row) {
			resp.Message = "Short link deleted"
			resp.Deleted = true
		} else {
			resp.Message = "Failed to delete short link"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// IsExpired reports expiry state without mutating clicks. Unknown codes
// are a not-found error here; this is an administrative surface.
func (f *ShortLinkFlowImpl) IsExpired(ctx context.Context, code string) (*dto.ExpiryCheckResponse, error) {
	rows, err := f.repo.Count(ctx, models.ShortLinkFilter{Code: utils.ToPtr(code)})
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if rows == 0 {
		return nil, ErrShortLinkNotFound
	}
	live, err := f.repo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	return &dto.ExpiryCheckResponse{Code: code, Expired: live == nil}, nil
}

// List returns an unfiltered page of records in insertion order,
// memoized per (skip, limit) until the cache ttl elapses. A page served
// from cache may lag the store by up to the ttl; the single-code
// resolution path never goes through this cache.
func (f *ShortLinkFlowImpl) List(ctx context.Context, req *dto.ListShortLinksRequest) (*dto.ListShortLinksResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request is required", nil)
	}
	if req.Skip < 0 {
		return nil, ErrInvalidSkip
	}
	if req.Limit < 1 || req.Limit > 1000 {
		return nil, ErrInvalidLimit
	}

	key := cache.Key("list_short_links", req.Skip, req.Limit)
	value, err := f.listCache.Do(ctx, key, func(ctx context.Context) (any, error) {
		return f.listUncached(ctx, req.Skip, req.Limit)
	})
	if err != nil {
		return nil, err
	}
	return value.(*dto.ListShortLinksResponse), nil
}

func (f *ShortLinkFlowImpl) listUncached(ctx context.Context, skip, limit int) (*dto.ListShortLinksResponse, error) {
	rows, err := f.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, NewBusinessError("LIST_SHORT_LINKS_FAILED", "Failed to list short links", err)
	}
	total, err := f.repo.Count(ctx, models.ShortLinkFilter{})
	if err != nil {
		return nil, NewBusinessError("COUNT_SHORT_LINKS_FAILED", "Failed to count short links", err)
	}
	items := make([]dto.ShortLinkDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, mapShortLinkDTO(r))
	}
	return &dto.ListShortLinksResponse{
		Message: "Short links retrieved",
		Items:   items,
		Total:   total,
	}, nil
}

// ExportExcel builds a workbook of all records, expired ones included.
func (f *ShortLinkFlowImpl) ExportExcel(ctx context.Context) (string, []byte, error) {
	rows, err := f.repo.List(ctx, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_SHORT_LINKS_FAILED", "Failed to load short links", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const sheet = "ShortLinks"
	idx, err := xl.NewSheet(sheet)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_SHORT_LINKS_FAILED", "Failed to create sheet", err)
	}
	xl.SetActiveSheet(idx)
	_ = xl.DeleteSheet("Sheet1")

	headers := []string{"id", "original_url", "shortened_url", "clicks", "created", "updated", "valid_until"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = xl.SetCellValue(sheet, col+"1", h)
	}
	for i, r := range rows {
		validUntil := ""
		if r.ValidUntil != nil {
			validUntil = r.ValidUntil.Format(time.RFC3339)
		}
		values := []any{
			r.UUID.String(),
			r.OriginalURL,
			r.Code,
			r.Clicks,
			r.CreatedAt.Format(time.RFC3339),
			r.UpdatedAt.Format(time.RFC3339),
			validUntil,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			_ = xl.SetCellValue(sheet, fmt.Sprintf("%s%d", col, i+2), v)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_SHORT_LINKS_FAILED", "Failed to serialize workbook", err)
	}
	filename := fmt.Sprintf("short_links_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// checkBlacklist rejects blacklisted hosts. When the blacklist source
// is entirely unavailable the check degrades open so that creation does
// not depend on an external fetch.
func (f *ShortLinkFlowImpl) checkBlacklist(ctx context.Context, host string) error {
	if f.blacklist == nil {
		return nil
	}
	listed, err := f.blacklist.IsBlacklisted(ctx, host)
	if err != nil {
		log.Printf("blacklist check unavailable for %q, allowing: %v", host, err)
		return nil
	}
	if listed {
		return ErrDomainBlacklisted
	}
	return nil
}

// validateOriginalURL enforces the http/https scheme contract and
// returns the lowercased host for the blacklist check.
func validateOriginalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrOriginalURLEmpty
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURLScheme
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}
	return strings.ToLower(u.Hostname()), nil
}

func mapShortLinkDTO(m *models.ShortLink) dto.ShortLinkDTO {
	return dto.ShortLinkDTO{
		ID:           m.UUID,
		OriginalURL:  m.OriginalURL,
		ShortenedURL: m.Code,
		Clicks:       m.Clicks,
		Created:      m.CreatedAt,
		Updated:      m.UpdatedAt,
		ValidUntil:   m.ValidUntil,
	}
}
