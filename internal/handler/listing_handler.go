package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/middleware"
	"github.com/owasp-nest/nest-api/internal/service"
	"github.com/owasp-nest/nest-api/internal/utils"
)

// ListingHandler serves the directory listing pages.
type ListingHandler struct {
	service service.ListingService
	logger  zerolog.Logger
}

// NewListingHandler creates a listing handler instance.
func NewListingHandler(service service.ListingService, logger zerolog.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		logger:  logger.With().Str("component", "listing_handler").Logger(),
	}
}

// Register binds one page route and one session route per listing index.
func (h *ListingHandler) Register(router fiber.Router) {
	for _, index := range h.service.Indexes() {
		index := index
		router.Get("/"+index, h.page(index))
		router.Use("/"+index+"/ws", h.upgrade)
		router.Get("/"+index+"/ws", websocket.New(h.session(index)))
	}
}

func (h *ListingHandler) page(index string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var query dto.ListingQuery
		if err := c.QueryParser(&query); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
		}

		payload, err := h.service.Page(c.UserContext(), index, query)
		if err != nil {
			switch {
			case isValidationError(err):
				return utils.Fail(c, fiber.StatusBadRequest, "invalid query parameters", validationDetails(err))
			case errors.Is(err, service.ErrUnknownIndex):
				return utils.SendError(c, fiber.StatusNotFound, "listing not found")
			default:
				requestLogger(h.logger, c).Error().Err(err).Str("index", index).Msg("failed to render listing page")
				return utils.SendError(c, fiber.StatusInternalServerError, "failed to load listing")
			}
		}

		return utils.SendSuccess(c, fmt.Sprintf("%s listing", index), payload)
	}
}

func (h *ListingHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
	c.Locals("request_ctx", ctx)
	return c.Next()
}

func (h *ListingHandler) session(index string) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		correlation, _ := conn.Locals("correlation_id").(string)
		baseCtx, _ := conn.Locals("request_ctx").(context.Context)

		h.service.ServeSession(conn, service.ListingSessionOptions{
			Index:         index,
			CorrelationID: correlation,
			Context:       baseCtx,
		})
	}
}
