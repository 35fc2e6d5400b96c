package dto

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/owasp-nest/nest-api/internal/models"
)

// FieldText is a form input value. It accepts JSON strings, numbers, and
// null so that free-text inputs arrive exactly as typed.
type FieldText string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FieldText) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*f = ""
	case len(trimmed) > 0 && trimmed[0] == '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*f = FieldText(value)
	default:
		*f = FieldText(strings.TrimSpace(string(trimmed)))
	}
	return nil
}

// ProgramFormRequest carries the program form inputs. Omitted fields are
// left untouched.
type ProgramFormRequest struct {
	Name         *string    `json:"name"`
	Description  *string    `json:"description"`
	MenteesLimit *FieldText `json:"menteesLimit"`
	StartedAt    *string    `json:"startedAt"`
	EndedAt      *string    `json:"endedAt"`
	Tags         *string    `json:"tags"`
	Domains      *string    `json:"domains"`
	AdminLogins  *string    `json:"adminLogins"`
	Status       *string    `json:"status"`
}

// ProgramValidateRequest asks for live validation of a draft.
type ProgramValidateRequest struct {
	Key     string             `json:"key" validate:"omitempty,max=160"`
	Fields  ProgramFormRequest `json:"fields"`
	Touched []string           `json:"touched" validate:"omitempty,dive,required"`
}

// ProgramValidateResponse lists the errors visible for the touched fields.
type ProgramValidateResponse struct {
	Valid   bool              `json:"valid"`
	Errors  map[string]string `json:"errors"`
	Touched []string          `json:"touched"`
}

// ProgramListRequest filters the caller's programs.
type ProgramListRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=draft published completed"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ProgramResponse is a stored mentorship program.
type ProgramResponse struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	MenteesLimit int        `json:"mentees_limit"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Tags         []string   `json:"tags"`
	Domains      []string   `json:"domains"`
	AdminLogins  []string   `json:"admin_logins"`
	Status       string     `json:"status"`
	OwnerLogin   string     `json:"owner_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProgramListResponse wraps paginated programs.
type ProgramListResponse struct {
	Items      []ProgramResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewProgramResponse maps a stored program.
func NewProgramResponse(program models.Program) ProgramResponse {
	return ProgramResponse{
		Key:          program.Key,
		Name:         program.Name,
		Description:  program.Description,
		MenteesLimit: program.MenteesLimit,
		StartedAt:    program.StartedAt,
		EndedAt:      program.EndedAt,
		Tags:         nonNil(program.Tags),
		Domains:      nonNil(program.Domains),
		AdminLogins:  nonNil(program.AdminLogins),
		Status:       program.Status,
		OwnerLogin:   program.OwnerLogin,
		CreatedAt:    program.CreatedAt,
		UpdatedAt:    program.UpdatedAt,
	}
}
