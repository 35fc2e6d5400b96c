package programform

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04", time.RFC3339}

var githubLogin = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// MaxMenteesLimit is the largest mentees limit a program may declare.
const MaxMenteesLimit = 10000

var messages = map[string]string{
	"notblank":    "Name is required",
	"wholenonneg": "Mentees limit must be a non-negative whole number",
	"menteesmax":  "Mentees limit must be at most " + strconv.Itoa(MaxMenteesLimit),
	"formdate":    "Enter a valid date",
	"dateorder":   "End date must be on or after the start date",
	"ghlogins":    "Admin logins must be comma-separated GitHub usernames",
	"oneof":       "Status must be one of draft, published, completed",
}

// DuplicateNameMessage is reported on the name field when another program already uses the name.
const DuplicateNameMessage = "A program with this name already exists"

// NewValidator returns a validator configured with the program form rules.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterRules(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterRules installs the custom tags used by FormData on v.
func RegisterRules(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"wholenonneg": func(fl validator.FieldLevel) bool {
			return isWholeNonNegative(fl.Field().Float())
		},
		"menteesmax": func(fl validator.FieldLevel) bool {
			return fl.Field().Float() <= MaxMenteesLimit
		},
		"formdate": func(fl validator.FieldLevel) bool {
			_, ok := ParseDate(fl.Field().String())
			return ok
		},
		"ghlogins": func(fl validator.FieldLevel) bool {
			for _, login := range ParseList(fl.Field().String()) {
				if strings.Contains(login, "--") || !githubLogin.MatchString(login) {
					return false
				}
			}
			return true
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		data := sl.Current().Interface().(FormData)
		if !datesOrdered(data.StartedAt, data.EndedAt) {
			sl.ReportError(data.EndedAt, string(FieldEndedAt), "EndedAt", "dateorder", "")
		}
	}, FormData{})

	return nil
}

func isWholeNonNegative(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return value >= 0 && value == math.Trunc(value)
}

// datesOrdered reports false only when both dates parse and end precedes start.
func datesOrdered(startedAt, endedAt string) bool {
	start, okStart := ParseDate(startedAt)
	end, okEnd := ParseDate(endedAt)
	if !okStart || !okEnd {
		return true
	}
	return !end.Before(start)
}

// ParseDate accepts dates, datetime-local values, and RFC 3339 timestamps.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// ParseMenteesLimit coerces free text the way the number input does: blank is
// zero (unlimited) and anything unparseable becomes NaN so validation rejects it.
func ParseMenteesLimit(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

// ParseList splits a comma-separated input, dropping blank entries.
func ParseList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// NormalizeName is the comparison form of a program name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
