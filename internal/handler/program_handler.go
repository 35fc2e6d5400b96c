package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/programform"
	"github.com/owasp-nest/nest-api/internal/service"
	"github.com/owasp-nest/nest-api/internal/utils"
)

// ProgramHandler serves the mentorship program form endpoints.
type ProgramHandler struct {
	service service.ProgramService
	logger  zerolog.Logger
}

// NewProgramHandler constructs a program handler.
func NewProgramHandler(service service.ProgramService, logger zerolog.Logger) *ProgramHandler {
	return &ProgramHandler{
		service: service,
		logger:  logger.With().Str("component", "program_handler").Logger(),
	}
}

// Register binds the caller-scoped program routes. The router must be authenticated.
func (h *ProgramHandler) Register(router fiber.Router) {
	router.Get("/", h.listMine)
	router.Post("/", h.create)
	router.Post("/validate", h.validate)
	router.Put("/:key", h.update)
}

// RegisterPublic binds the read-only program routes.
func (h *ProgramHandler) RegisterPublic(router fiber.Router) {
	router.Get("/:key", h.get)
}

func (h *ProgramHandler) listMine(c *fiber.Ctx) error {
	var req dto.ProgramListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.ListMine(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return h.handleError(c, err, "failed to list programs")
	}

	return utils.OK(c, result.Items, "programs retrieved", fiber.Map{"pagination": result.Pagination})
}

func (h *ProgramHandler) get(c *fiber.Ctx) error {
	program, err := h.service.Get(c.UserContext(), c.Params("key"))
	if err != nil {
		return h.handleError(c, err, "failed to load program")
	}
	return utils.SendSuccess(c, "program retrieved", program)
}

func (h *ProgramHandler) create(c *fiber.Ctx) error {
	var req dto.ProgramFormRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	program, err := h.service.Create(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return h.handleError(c, err, "failed to create program")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "program created", program)
}

func (h *ProgramHandler) update(c *fiber.Ctx) error {
	var req dto.ProgramFormRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	program, err := h.service.Update(c.UserContext(), actorFromContext(c), c.Params("key"), req)
	if err != nil {
		return h.handleError(c, err, "failed to update program")
	}

	return utils.SendSuccess(c, "program updated", program)
}

func (h *ProgramHandler) validate(c *fiber.Ctx) error {
	var req dto.ProgramValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Validate(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return h.handleError(c, err, "failed to validate program")
	}

	return utils.SendSuccess(c, "program validated", result)
}

func (h *ProgramHandler) handleError(c *fiber.Ctx, err error, message string) error {
	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "program form invalid", formErr.Details())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request", validationDetails(err))
	case errors.Is(err, programform.ErrUnknownField):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProgramNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "program not found")
	case errors.Is(err, service.ErrProgramForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "you do not administer this program")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
