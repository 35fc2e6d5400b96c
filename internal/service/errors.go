package service

import (
	"errors"
	"strings"

	"github.com/owasp-nest/nest-api/internal/programform"
)

var (
	// ErrProgramNotFound indicates the requested program does not exist.
	ErrProgramNotFound = errors.New("program not found")
	// ErrProgramForbidden indicates the caller does not administer the program.
	ErrProgramForbidden = errors.New("program not administered by caller")
	// ErrUnknownIndex indicates a listing index that is not served.
	ErrUnknownIndex = errors.New("unknown listing index")
)

// FormError carries the per-field errors of a rejected program form.
type FormError struct {
	Errors programform.ErrorMap
}

func (e *FormError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, string(field))
	}
	return "program form invalid: " + strings.Join(fields, ", ")
}

// Details renders the errors keyed by field identifier.
func (e *FormError) Details() map[string]string {
	details := make(map[string]string, len(e.Errors))
	for field, message := range e.Errors {
		details[string(field)] = message
	}
	return details
}
