// Package programform implements the mentorship program form: field state,
// touched tracking, synchronous validation, and the asynchronous name
// uniqueness check that gates submission.
package programform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/owasp-nest/nest-api/internal/observability"
)

// Field identifies a form input.
type Field string

const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldMenteesLimit Field = "menteesLimit"
	FieldStartedAt    Field = "startedAt"
	FieldEndedAt      Field = "endedAt"
	FieldTags         Field = "tags"
	FieldDomains      Field = "domains"
	FieldAdminLogins  Field = "adminLogins"
	FieldStatus       Field = "status"
)

// ErrUnknownField is returned by SetField for identifiers the form does not render.
var ErrUnknownField = errors.New("unknown form field")

// FormData is the editable program record.
type FormData struct {
	Name         string  `json:"name" validate:"notblank"`
	Description  string  `json:"description"`
	MenteesLimit float64 `json:"menteesLimit" validate:"wholenonneg,menteesmax"`
	StartedAt    string  `json:"startedAt" validate:"omitempty,formdate"`
	EndedAt      string  `json:"endedAt" validate:"omitempty,formdate"`
	Tags         string  `json:"tags"`
	Domains      string  `json:"domains"`
	AdminLogins  string  `json:"adminLogins" validate:"omitempty,ghlogins"`
	Status       string  `json:"status" validate:"omitempty,oneof=draft published completed"`
}

// ErrorMap maps a field to its current error message.
type ErrorMap map[Field]string

// ProgramRef is the part of an existing program the uniqueness check needs.
type ProgramRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// QueryClient lists the caller's existing programs. A nil slice means the
// service returned no list.
type QueryClient interface {
	MyPrograms(ctx context.Context) ([]ProgramRef, error)
}

// QueryFunc adapts a function to QueryClient.
type QueryFunc func(ctx context.Context) ([]ProgramRef, error)

// MyPrograms calls f.
func (f QueryFunc) MyPrograms(ctx context.Context) ([]ProgramRef, error) {
	return f(ctx)
}

// SubmitFunc receives the form once every check has passed.
type SubmitFunc func(ctx context.Context, data FormData) error

// Config wires a controller.
type Config struct {
	IsEdit            bool
	CurrentProgramKey string
	Initial           FormData
	Query             QueryClient
	OnSubmit          SubmitFunc
	Validator         *validator.Validate
	Logger            zerolog.Logger
}

// Result describes the outcome of a submit attempt.
type Result struct {
	Submitted bool     `json:"submitted"`
	Errors    ErrorMap `json:"errors"`
}

// Controller owns the state of one mounted program form.
type Controller struct {
	isEdit     bool
	currentKey string
	query      QueryClient
	onSubmit   SubmitFunc
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	data    FormData
	touched map[Field]struct{}
	errors  ErrorMap
}

// NewController builds a form controller.
func NewController(cfg Config) *Controller {
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	return &Controller{
		isEdit:     cfg.IsEdit,
		currentKey: cfg.CurrentProgramKey,
		query:      cfg.Query,
		onSubmit:   cfg.OnSubmit,
		validator:  v,
		logger:     cfg.Logger.With().Str("component", "program_form").Logger(),
		tracer:     otel.Tracer("github.com/owasp-nest/nest-api/internal/programform"),
		data:       cfg.Initial,
		touched:    make(map[Field]struct{}),
		errors:     make(ErrorMap),
	}
}

// Fields lists the inputs rendered in the given mode.
func Fields(isEdit bool) []Field {
	fields := []Field{
		FieldName,
		FieldDescription,
		FieldMenteesLimit,
		FieldStartedAt,
		FieldEndedAt,
		FieldTags,
		FieldDomains,
		FieldStatus,
	}
	if isEdit {
		fields = append(fields, FieldAdminLogins)
	}
	return fields
}

// SetField stores value, marks the field touched, and clears its error when
// the new value satisfies the field's own rule.
func (c *Controller) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldName:
		c.data.Name = value
		// A new name always invalidates the previous uniqueness verdict.
		if c.errors[FieldName] == DuplicateNameMessage {
			delete(c.errors, FieldName)
		}
	case FieldDescription:
		c.data.Description = value
	case FieldMenteesLimit:
		c.data.MenteesLimit = ParseMenteesLimit(value)
	case FieldStartedAt:
		c.data.StartedAt = value
	case FieldEndedAt:
		c.data.EndedAt = value
	case FieldTags:
		c.data.Tags = value
	case FieldDomains:
		c.data.Domains = value
	case FieldStatus:
		c.data.Status = value
	case FieldAdminLogins:
		if !c.isEdit {
			return fmt.Errorf("%w: %s is only available when editing", ErrUnknownField, field)
		}
		c.data.AdminLogins = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	c.touched[field] = struct{}{}

	current := c.validateLocked()
	c.clearIfValidLocked(field, current)
	if field == FieldStartedAt {
		c.clearIfValidLocked(FieldEndedAt, current)
	}

	return nil
}

func (c *Controller) clearIfValidLocked(field Field, current ErrorMap) {
	if _, failing := current[field]; !failing {
		delete(c.errors, field)
	}
}

// Data returns a copy of the form data.
func (c *Controller) Data() FormData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// IsTouched reports whether the user has interacted with field.
func (c *Controller) IsTouched(field Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.touched[field]
	return ok
}

// TouchedFields lists touched fields in a stable order.
func (c *Controller) TouchedFields() []Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := make([]Field, 0, len(c.touched))
	for field := range c.touched {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Touch marks field as interacted with without changing its value.
func (c *Controller) Touch(field Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched[field] = struct{}{}
}

// Errors returns every current error, shown or not.
func (c *Controller) Errors() ErrorMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyErrors(c.errors)
}

// VisibleErrors returns the errors of touched fields only.
func (c *Controller) VisibleErrors() ErrorMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := make(ErrorMap)
	for field, message := range c.errors {
		if _, ok := c.touched[field]; ok {
			visible[field] = message
		}
	}
	return visible
}

// Validate runs the synchronous rules and replaces the stored errors with the result.
func (c *Controller) Validate() ErrorMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = c.validateLocked()
	return copyErrors(c.errors)
}

// AttemptSubmit touches every field, validates, checks the name against the
// caller's programs, and calls the submit callback when everything passes.
// The returned error is the callback's own error.
func (c *Controller) AttemptSubmit(ctx context.Context) (Result, error) {
	mode := "create"
	if c.isEdit {
		mode = "edit"
	}

	ctx, span := c.tracer.Start(ctx, "program_form.submit", trace.WithAttributes(
		attribute.String("program.mode", mode),
		attribute.String("program.key", c.currentKey),
	))
	defer span.End()

	c.mu.Lock()
	for _, field := range Fields(c.isEdit) {
		c.touched[field] = struct{}{}
	}
	c.errors = c.validateLocked()
	if len(c.errors) > 0 {
		result := Result{Errors: copyErrors(c.errors)}
		c.mu.Unlock()
		span.SetStatus(codes.Error, "validation failed")
		observability.ProgramSubmissions().WithLabelValues(mode, "invalid").Inc()
		return result, nil
	}
	data := c.data
	c.mu.Unlock()

	if NormalizeName(data.Name) != "" {
		if conflict := c.findConflict(ctx, data.Name); conflict {
			c.mu.Lock()
			c.errors[FieldName] = DuplicateNameMessage
			result := Result{Errors: copyErrors(c.errors)}
			c.mu.Unlock()
			span.SetStatus(codes.Error, "duplicate name")
			observability.ProgramSubmissions().WithLabelValues(mode, "conflict").Inc()
			return result, nil
		}
	}

	if c.onSubmit != nil {
		if err := c.onSubmit(ctx, data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit failed")
			observability.ProgramSubmissions().WithLabelValues(mode, "failed").Inc()
			return Result{Errors: ErrorMap{}}, err
		}
	}

	span.SetStatus(codes.Ok, "submitted")
	observability.ProgramSubmissions().WithLabelValues(mode, "submitted").Inc()
	return Result{Submitted: true, Errors: ErrorMap{}}, nil
}

// findConflict reports whether another program already uses name. Query
// failures count as no conflict.
func (c *Controller) findConflict(ctx context.Context, name string) bool {
	if c.query == nil {
		return false
	}

	programs, err := c.query.MyPrograms(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("program uniqueness check failed, continuing without it")
		return false
	}

	wanted := NormalizeName(name)
	for _, program := range programs {
		if NormalizeName(program.Name) != wanted {
			continue
		}
		if c.isEdit && program.Key == c.currentKey {
			return false
		}
		return true
	}
	return false
}

func (c *Controller) validateLocked() ErrorMap {
	found := make(ErrorMap)
	err := c.validator.Struct(c.data)
	if err == nil {
		return found
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.logger.Error().Err(err).Msg("unexpected validation failure")
		return found
	}

	for _, fieldErr := range validationErrors {
		field := Field(fieldErr.Field())
		if _, exists := found[field]; exists {
			continue
		}
		message, ok := messages[fieldErr.Tag()]
		if !ok {
			message = strings.TrimSpace(fmt.Sprintf("%s is invalid", fieldErr.Field()))
		}
		found[field] = message
	}
	return found
}

func copyErrors(source ErrorMap) ErrorMap {
	copied := make(ErrorMap, len(source))
	for field, message := range source {
		copied[field] = message
	}
	return copied
}
