package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/linkmint/linkmint/app/dto"
	businessflow "github.com/linkmint/linkmint/business_flow"
	"github.com/linkmint/linkmint/utils"
)

// ShortLinkHandlerInterface defines the contract for short link endpoints
type ShortLinkHandlerInterface interface {
	Create(c fiber.Ctx) error
	Redirect(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	GetByID(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Expired(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

type ShortLinkHandler struct {
	flow      businessflow.ShortLinkFlow
	validator *validator.Validate
	baseURL   string
}

func NewShortLinkHandler(flow businessflow.ShortLinkFlow, baseURL string) ShortLinkHandlerInterface {
	return &ShortLinkHandler{
		flow:      flow,
		validator: validator.New(),
		baseURL:   baseURL,
	}
}

// Create shortens a URL
// @Summary Create Short Link
// @Tags ShortLinks
// @Accept json
// @Produce json
// @Param request body dto.CreateShortLinkRequest true "Create request"
// @Success 201 {object} dto.APIResponse
// @Success 200 {object} dto.APIResponse "Existing live record returned"
// @Failure 400 {object} dto.APIResponse
// @Failure 422 {object} dto.APIResponse
// @Router /api/v1/urls [post]
func (h *ShortLinkHandler) Create(c fiber.Ctx) error {
	var req dto.CreateShortLinkRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid request body",
			Error:   dto.ErrorDetail{Code: "INVALID_BODY"},
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.validationError(c, err)
	}

	resp, err := h.flow.Shorten(h.createRequestContext(c, "/api/v1/urls"), &req)
	if err != nil {
		return h.businessError(c, "Create short link failed", err)
	}

	status := fiber.StatusOK
	if resp.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.APIResponse{
		Success: true,
		Message: resp.Message,
		Data:    h.withShortURL(resp.Item),
	})
}

// Redirect resolves a short code and redirects to the original URL
// @Summary Visit Short Link
// @Tags ShortLinks
// @Param code path string true "Short code"
// @Success 302 {string} string "Redirect"
// @Failure 404 {object} any
// @Router /{code} [get]
func (h *ShortLinkHandler) Redirect(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).SendString("invalid short link")
	}

	item, err := h.flow.Resolve(h.createRequestContext(c, "/"+code), code)
	if err != nil {
		if businessflow.IsShortLinkNotFound(err) {
			return c.Status(fiber.StatusNotFound).SendString("not found")
		}
		log.Println("Resolve short link failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}
	c.Redirect().Status(fiber.StatusFound).To(item.OriginalURL)
	return nil
}

// Get returns the full entity for a live code without counting a click
// @Summary Get Short Link
// @Tags ShortLinks
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/urls/{code} [get]
func (h *ShortLinkHandler) Get(c fiber.Ctx) error {
	code := c.Params("code")
	item, err := h.flow.Peek(h.createRequestContext(c, "/api/v1/urls/"+code), code)
	if err != nil {
		return h.businessError(c, "Get short link failed", err)
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Short link retrieved",
		Data:    h.withShortURL(*item),
	})
}

// GetByID returns the full entity for a live record by its public identifier
// @Summary Get Short Link By ID
// @Tags ShortLinks
// @Produce json
// @Param id path string true "Short link identifier"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/urls/id/{id} [get]
func (h *ShortLinkHandler) GetByID(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid short link identifier",
			Error:   dto.ErrorDetail{Code: "INVALID_ID"},
		})
	}
	item, err := h.flow.PeekByID(h.createRequestContext(c, "/api/v1/urls/id/"+id.String()), id)
	if err != nil {
		return h.businessError(c, "Get short link by ID failed", err)
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Short link retrieved",
		Data:    h.withShortURL(*item),
	})
}

// List returns all records, expired ones included
// @Summary List Short Links
// @Tags ShortLinks
// @Produce json
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/urls [get]
func (h *ShortLinkHandler) List(c fiber.Ctx) error {
	req := dto.ListShortLinksRequest{
		Skip:  queryInt(c, "skip", 0),
		Limit: queryInt(c, "limit", 100),
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.validationError(c, err)
	}

	resp, err := h.flow.List(h.createRequestContext(c, "/api/v1/urls"), &req)
	if err != nil {
		return h.businessError(c, "List short links failed", err)
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: resp.Message,
		Data:    resp,
	})
}

// Delete removes a live short link
// @Summary Delete Short Link
// @Tags ShortLinks
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/urls/{code} [delete]
func (h *ShortLinkHandler) Delete(c fiber.Ctx) error {
	code := c.Params("code")
	resp, err := h.flow.Delete(h.createRequestContext(c, "/api/v1/urls/"+code), code)
	if err != nil {
		return h.businessError(c, "Delete short link failed", err)
	}
	return c.JSON(dto.APIResponse{
		Success: resp.Deleted,
		Message: resp.Message,
		Data:    resp,
	})
}

// Expired reports the expiry state of a code
// @Summary Check Short Link Expiry
// @Tags ShortLinks
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/urls/{code}/expired [get]
func (h *ShortLinkHandler) Expired(c fiber.Ctx) error {
	code := c.Params("code")
	resp, err := h.flow.IsExpired(h.createRequestContext(c, "/api/v1/urls/"+code+"/expired"), code)
	if err != nil {
		return h.businessError(c, "Expiry check failed", err)
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Expiry state retrieved",
		Data:    resp,
	})
}

// Export downloads the full listing as a spreadsheet
// @Summary Export Short Links
// @Tags ShortLinks
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /api/v1/urls/export [get]
func (h *ShortLinkHandler) Export(c fiber.Ctx) error {
	filename, data, err := h.flow.ExportExcel(h.createRequestContextWithTimeout(c, "/api/v1/urls/export", 30*time.Second))
	if err != nil {
		return h.businessError(c, "Export short links failed", err)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(data)
}

// withShortURL renders the public short URL next to the bare code.
func (h *ShortLinkHandler) withShortURL(item dto.ShortLinkDTO) fiber.Map {
	return fiber.Map{
		"id":            item.ID,
		"original_url":  item.OriginalURL,
		"shortened_url": item.ShortenedURL,
		"short_url":     fmt.Sprintf("%s/%s", h.baseURL, item.ShortenedURL),
		"clicks":        item.Clicks,
		"created":       item.Created,
		"updated":       item.Updated,
		"valid_until":   item.ValidUntil,
	}
}

func (h *ShortLinkHandler) validationError(c fiber.Ctx, err error) error {
	details := make([]string, 0)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, ve := range verrs {
			details = append(details, getValidationErrorMessage(ve))
		}
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.APIResponse{
		Success: false,
		Message: "Validation failed",
		Error:   dto.ErrorDetail{Code: "VALIDATION_ERROR", Details: details},
	})
}

func (h *ShortLinkHandler) businessError(c fiber.Ctx, logMsg string, err error) error {
	switch {
	case businessflow.IsShortLinkNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
			Success: false,
			Message: "Short link not found",
			Error:   dto.ErrorDetail{Code: "NOT_FOUND"},
		})
	case businessflow.IsOriginalURLEmpty(err), businessflow.IsInvalidURL(err),
		businessflow.IsInvalidURLScheme(err), businessflow.IsInvalidSkip(err),
		businessflow.IsInvalidLimit(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.APIResponse{
			Success: false,
			Message: err.Error(),
			Error:   dto.ErrorDetail{Code: "VALIDATION_ERROR"},
		})
	case businessflow.IsDomainBlacklisted(err):
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Domain is blacklisted",
			Error:   dto.ErrorDetail{Code: "DOMAIN_BLACKLISTED"},
		})
	default:
		log.Println(logMsg, err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Internal server error",
			Error:   dto.ErrorDetail{Code: "INTERNAL_ERROR"},
		})
	}
}

func queryInt(c fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (h *ShortLinkHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 10*time.Second)
}

func (h *ShortLinkHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
