package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/models"
	"github.com/owasp-nest/nest-api/internal/service"
	"github.com/owasp-nest/nest-api/internal/utils"
)

// SeedHandler exposes tooling endpoints that fill the database search indexes.
type SeedHandler struct {
	service   service.SeedService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, validate *validator.Validate, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/projects", h.projects)
	router.Post("/chapters", h.chapters)
	router.Post("/committees", h.committees)
	router.Post("/issues", h.issues)
	router.Post("/programs", h.programs)
}

func (h *SeedHandler) projects(c *fiber.Ctx) error {
	var payload dto.SeedProjectsRequest
	if ok, err := h.parse(c, &payload); !ok {
		return err
	}

	items := make([]models.Project, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, item.ToModel())
	}

	affected, err := h.service.SeedProjects(c.UserContext(), c.Get("X-Seed-Token"), items)
	return h.respond(c, "projects", affected, err)
}

func (h *SeedHandler) chapters(c *fiber.Ctx) error {
	var payload dto.SeedChaptersRequest
	if ok, err := h.parse(c, &payload); !ok {
		return err
	}

	items := make([]models.Chapter, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, item.ToModel())
	}

	affected, err := h.service.SeedChapters(c.UserContext(), c.Get("X-Seed-Token"), items)
	return h.respond(c, "chapters", affected, err)
}

func (h *SeedHandler) committees(c *fiber.Ctx) error {
	var payload dto.SeedCommitteesRequest
	if ok, err := h.parse(c, &payload); !ok {
		return err
	}

	items := make([]models.Committee, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, item.ToModel())
	}

	affected, err := h.service.SeedCommittees(c.UserContext(), c.Get("X-Seed-Token"), items)
	return h.respond(c, "committees", affected, err)
}

func (h *SeedHandler) issues(c *fiber.Ctx) error {
	var payload dto.SeedIssuesRequest
	if ok, err := h.parse(c, &payload); !ok {
		return err
	}

	items := make([]models.Issue, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, item.ToModel())
	}

	affected, err := h.service.SeedIssues(c.UserContext(), c.Get("X-Seed-Token"), items)
	return h.respond(c, "issues", affected, err)
}

func (h *SeedHandler) programs(c *fiber.Ctx) error {
	var payload dto.SeedProgramsRequest
	if ok, err := h.parse(c, &payload); !ok {
		return err
	}

	items := make([]models.Program, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, item.ToModel())
	}

	affected, err := h.service.SeedPrograms(c.UserContext(), c.Get("X-Seed-Token"), items)
	return h.respond(c, "programs", affected, err)
}

// parse decodes and validates the payload. When it reports false the error
// response has already been written.
func (h *SeedHandler) parse(c *fiber.Ctx, payload interface{}) (bool, error) {
	if err := c.BodyParser(payload); err != nil {
		return false, utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return false, utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	}
	return true, nil
}

func (h *SeedHandler) respond(c *fiber.Ctx, index string, affected int64, err error) error {
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccess(c, index+" seeded", dto.SeedResponse{Index: index, Affected: affected})
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
