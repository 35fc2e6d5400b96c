package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/models"
	"github.com/owasp-nest/nest-api/internal/programform"
	"github.com/owasp-nest/nest-api/internal/repository"
)

const (
	defaultProgramPageSize = 20
	maxProgramPageSize     = 100
	maxKeyAttempts         = 50
	programDateLayout      = "2006-01-02"
)

// EventPublisher publishes program lifecycle events. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// ProgramEvent is published after a program is created or updated.
type ProgramEvent struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	OwnerLogin string    `json:"owner_login"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProgramService manages mentorship programs through the program form.
type ProgramService interface {
	ListMine(ctx context.Context, actor Actor, req dto.ProgramListRequest) (dto.ProgramListResponse, error)
	Get(ctx context.Context, key string) (dto.ProgramResponse, error)
	Create(ctx context.Context, actor Actor, req dto.ProgramFormRequest) (dto.ProgramResponse, error)
	Update(ctx context.Context, actor Actor, key string, req dto.ProgramFormRequest) (dto.ProgramResponse, error)
	Validate(ctx context.Context, actor Actor, req dto.ProgramValidateRequest) (dto.ProgramValidateResponse, error)
}

type programService struct {
	repo          repository.ProgramRepository
	queries       ProgramQuerySource
	validator     *validator.Validate
	formValidator *validator.Validate
	publisher     EventPublisher
	subject       string
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewProgramService constructs the program service. publisher may be nil.
func NewProgramService(repo repository.ProgramRepository, queries ProgramQuerySource, validate *validator.Validate, publisher EventPublisher, subject string, logger zerolog.Logger) ProgramService {
	return &programService{
		repo:          repo,
		queries:       queries,
		validator:     validate,
		formValidator: programform.NewValidator(),
		publisher:     publisher,
		subject:       strings.TrimSuffix(subject, "."),
		sanitizer:     bluemonday.UGCPolicy(),
		logger:        logger.With().Str("component", "program_service").Logger(),
		tracer:        otel.Tracer("github.com/owasp-nest/nest-api/internal/service/program"),
		now:           time.Now,
	}
}

func (s *programService) ListMine(ctx context.Context, actor Actor, req dto.ProgramListRequest) (dto.ProgramListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgramListResponse{}, err
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := clampPageSize(req.PageSize)

	programs, total, err := s.repo.List(ctx, repository.ProgramFilter{
		Login:    actor.Login,
		Status:   req.Status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.ProgramListResponse{}, err
	}

	items := make([]dto.ProgramResponse, 0, len(programs))
	for _, program := range programs {
		items = append(items, dto.NewProgramResponse(program))
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return dto.ProgramListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *programService) Get(ctx context.Context, key string) (dto.ProgramResponse, error) {
	program, err := s.load(ctx, key)
	if err != nil {
		return dto.ProgramResponse{}, err
	}
	return dto.NewProgramResponse(program), nil
}

func (s *programService) Create(ctx context.Context, actor Actor, req dto.ProgramFormRequest) (dto.ProgramResponse, error) {
	ctx, span := s.tracer.Start(ctx, "program.create", trace.WithAttributes(attribute.String("program.actor", actor.Login)))
	defer span.End()

	var created models.Program
	form := programform.NewController(programform.Config{
		Initial:   programform.FormData{Status: models.ProgramStatusDraft},
		Query:     s.queryFor(actor),
		Validator: s.formValidator,
		Logger:    s.logger,
		OnSubmit: func(ctx context.Context, data programform.FormData) error {
			program := models.Program{OwnerLogin: actor.Login}
			s.apply(&program, data, false)

			key, err := s.uniqueKey(ctx, program.Name)
			if err != nil {
				return err
			}
			program.Key = key

			if err := s.repo.Create(ctx, &program); err != nil {
				return err
			}
			created = program
			return nil
		},
	})

	if err := s.submit(ctx, form, req); err != nil {
		span.RecordError(err)
		return dto.ProgramResponse{}, err
	}

	s.publish("created", created, actor)
	s.logger.Info().Str("program_key", created.Key).Str("owner", actor.Login).Msg("program created")
	return dto.NewProgramResponse(created), nil
}

func (s *programService) Update(ctx context.Context, actor Actor, key string, req dto.ProgramFormRequest) (dto.ProgramResponse, error) {
	ctx, span := s.tracer.Start(ctx, "program.update", trace.WithAttributes(
		attribute.String("program.actor", actor.Login),
		attribute.String("program.key", key),
	))
	defer span.End()

	program, err := s.loadForAdmin(ctx, actor, key)
	if err != nil {
		return dto.ProgramResponse{}, err
	}

	form := programform.NewController(programform.Config{
		IsEdit:            true,
		CurrentProgramKey: program.Key,
		Initial:           formDataFromProgram(program),
		Query:             s.queryFor(actor),
		Validator:         s.formValidator,
		Logger:            s.logger,
		OnSubmit: func(ctx context.Context, data programform.FormData) error {
			s.apply(&program, data, true)
			return s.repo.Update(ctx, &program)
		},
	})

	if err := s.submit(ctx, form, req); err != nil {
		span.RecordError(err)
		return dto.ProgramResponse{}, err
	}

	s.publish("updated", program, actor)
	s.logger.Info().Str("program_key", program.Key).Str("actor", actor.Login).Msg("program updated")
	return dto.NewProgramResponse(program), nil
}

func (s *programService) Validate(ctx context.Context, actor Actor, req dto.ProgramValidateRequest) (dto.ProgramValidateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgramValidateResponse{}, err
	}

	cfg := programform.Config{
		Initial:   programform.FormData{Status: models.ProgramStatusDraft},
		Validator: s.formValidator,
		Logger:    s.logger,
	}
	if key := strings.TrimSpace(req.Key); key != "" {
		program, err := s.loadForAdmin(ctx, actor, key)
		if err != nil {
			return dto.ProgramValidateResponse{}, err
		}
		cfg.IsEdit = true
		cfg.CurrentProgramKey = program.Key
		cfg.Initial = formDataFromProgram(program)
	}

	data, err := overlay(cfg.Initial, req.Fields, cfg.IsEdit)
	if err != nil {
		return dto.ProgramValidateResponse{}, err
	}
	cfg.Initial = data

	form := programform.NewController(cfg)
	allowed := make(map[programform.Field]struct{})
	for _, field := range programform.Fields(cfg.IsEdit) {
		allowed[field] = struct{}{}
	}
	for _, name := range req.Touched {
		field := programform.Field(name)
		if _, ok := allowed[field]; !ok {
			return dto.ProgramValidateResponse{}, fmt.Errorf("%w: %s", programform.ErrUnknownField, name)
		}
		form.Touch(field)
	}

	all := form.Validate()
	visible := form.VisibleErrors()

	errs := make(map[string]string, len(visible))
	for field, message := range visible {
		errs[string(field)] = message
	}
	touched := make([]string, 0)
	for _, field := range form.TouchedFields() {
		touched = append(touched, string(field))
	}

	return dto.ProgramValidateResponse{Valid: len(all) == 0, Errors: errs, Touched: touched}, nil
}

// submit replays the request through the form and attempts submission.
func (s *programService) submit(ctx context.Context, form *programform.Controller, req dto.ProgramFormRequest) error {
	for _, input := range formInputs(req) {
		if err := form.SetField(input.field, input.value); err != nil {
			return err
		}
	}

	result, err := form.AttemptSubmit(ctx)
	if err != nil {
		return err
	}
	if !result.Submitted {
		return &FormError{Errors: result.Errors}
	}
	return nil
}

func (s *programService) queryFor(actor Actor) programform.QueryClient {
	if s.queries == nil {
		return nil
	}
	return s.queries.ForActor(actor)
}

func (s *programService) load(ctx context.Context, key string) (models.Program, error) {
	program, err := s.repo.GetByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Program{}, ErrProgramNotFound
		}
		return models.Program{}, err
	}
	return program, nil
}

func (s *programService) loadForAdmin(ctx context.Context, actor Actor, key string) (models.Program, error) {
	program, err := s.load(ctx, key)
	if err != nil {
		return models.Program{}, err
	}
	if !program.IsAdmin(actor.Login) {
		return models.Program{}, ErrProgramForbidden
	}
	return program, nil
}

func (s *programService) apply(program *models.Program, data programform.FormData, isEdit bool) {
	program.Name = strings.TrimSpace(data.Name)
	program.Description = strings.TrimSpace(s.sanitizer.Sanitize(data.Description))
	program.MenteesLimit = int(data.MenteesLimit)
	program.StartedAt = parseOptionalDate(data.StartedAt)
	program.EndedAt = parseOptionalDate(data.EndedAt)
	program.Tags = programform.ParseList(data.Tags)
	program.Domains = programform.ParseList(data.Domains)
	program.Status = data.Status
	if program.Status == "" {
		program.Status = models.ProgramStatusDraft
	}
	if isEdit {
		program.AdminLogins = programform.ParseList(data.AdminLogins)
	}
}

func (s *programService) uniqueKey(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "program"
	}

	candidate := base
	for attempt := 2; attempt <= maxKeyAttempts+1; attempt++ {
		exists, err := s.repo.KeyExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", fmt.Errorf("no free program key for %q", base)
}

func (s *programService) publish(kind string, program models.Program, actor Actor) {
	if s.publisher == nil || s.subject == "" {
		return
	}

	payload, err := json.Marshal(ProgramEvent{
		Type:       "program." + kind,
		Key:        program.Key,
		Name:       program.Name,
		OwnerLogin: program.OwnerLogin,
		Actor:      actor.Login,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal program event")
		return
	}

	if err := s.publisher.Publish(s.subject+"."+kind, payload); err != nil {
		s.logger.Warn().Err(err).Str("program_key", program.Key).Msg("failed to publish program event")
	}
}

type formInput struct {
	field programform.Field
	value string
}

func formInputs(req dto.ProgramFormRequest) []formInput {
	inputs := make([]formInput, 0, 9)
	add := func(field programform.Field, value *string) {
		if value != nil {
			inputs = append(inputs, formInput{field: field, value: *value})
		}
	}
	add(programform.FieldName, req.Name)
	add(programform.FieldDescription, req.Description)
	if req.MenteesLimit != nil {
		inputs = append(inputs, formInput{field: programform.FieldMenteesLimit, value: string(*req.MenteesLimit)})
	}
	add(programform.FieldStartedAt, req.StartedAt)
	add(programform.FieldEndedAt, req.EndedAt)
	add(programform.FieldTags, req.Tags)
	add(programform.FieldDomains, req.Domains)
	add(programform.FieldAdminLogins, req.AdminLogins)
	add(programform.FieldStatus, req.Status)
	return inputs
}

// overlay applies request values onto data without touching any field.
func overlay(data programform.FormData, req dto.ProgramFormRequest, isEdit bool) (programform.FormData, error) {
	for _, input := range formInputs(req) {
		switch input.field {
		case programform.FieldName:
			data.Name = input.value
		case programform.FieldDescription:
			data.Description = input.value
		case programform.FieldMenteesLimit:
			data.MenteesLimit = programform.ParseMenteesLimit(input.value)
		case programform.FieldStartedAt:
			data.StartedAt = input.value
		case programform.FieldEndedAt:
			data.EndedAt = input.value
		case programform.FieldTags:
			data.Tags = input.value
		case programform.FieldDomains:
			data.Domains = input.value
		case programform.FieldStatus:
			data.Status = input.value
		case programform.FieldAdminLogins:
			if !isEdit {
				return data, fmt.Errorf("%w: %s is only available when editing", programform.ErrUnknownField, input.field)
			}
			data.AdminLogins = input.value
		}
	}
	return data, nil
}

func formDataFromProgram(program models.Program) programform.FormData {
	return programform.FormData{
		Name:         program.Name,
		Description:  program.Description,
		MenteesLimit: float64(program.MenteesLimit),
		StartedAt:    formatOptionalDate(program.StartedAt),
		EndedAt:      formatOptionalDate(program.EndedAt),
		Tags:         strings.Join(program.Tags, ", "),
		Domains:      strings.Join(program.Domains, ", "),
		AdminLogins:  strings.Join(program.AdminLogins, ", "),
		Status:       program.Status,
	}
}

func parseOptionalDate(value string) *time.Time {
	parsed, ok := programform.ParseDate(value)
	if !ok {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

func formatOptionalDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(programDateLayout)
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultProgramPageSize
	}
	if size > maxProgramPageSize {
		return maxProgramPageSize
	}
	return size
}
