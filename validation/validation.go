package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/session"
)

var (
	nameRe   = regexp.MustCompile(`^[\p{L}][\p{L} '\-]{1,59}$`)
	phoneRe  = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	letterRe = regexp.MustCompile(`\p{L}`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "name", func(fl validator.FieldLevel) bool { return IsName(fl.Field().String()) })
	mustRegister(v, "password", func(fl validator.FieldLevel) bool { return IsStrongPassword(fl.Field().String()) })
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool { return IsPhone(fl.Field().String()) })
	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		_, ok := session.ParseRole(fl.Field().String())
		return ok
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

var messages = map[string]string{
	"required": "%s is required.",
	"email":    "%s must be a valid email address.",
	"min":      "%s must be at least %s.",
	"max":      "%s must be at most %s.",
	"oneof":    "%s must be one of: %s.",
	"gtefield": "%s must not be before %s.",
	"name":     "%s may only contain letters, spaces, apostrophes and hyphens.",
	"password": "%s must be at least 8 characters and contain a letter and a digit.",
	"phone":    "%s must be a valid phone number.",
	"role":     "%s must be member, admin or regular.",
}

func message(field string, fe validator.FieldError) string {
	label := strings.ReplaceAll(field, "_", " ")
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid.", label)
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, label, strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf(msg, label)
}

// Error lists the fields that failed validation, keyed by JSON name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := e.keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap classifies every validation failure as fault.ErrValidation.
func (e *Error) Unwrap() error { return fault.ErrValidation }

// UserMessage returns the message of the first failing field in name order.
func (e *Error) UserMessage() string {
	keys := e.keys()
	if len(keys) == 0 {
		return ""
	}
	return e.Fields[keys[0]]
}

func (e *Error) keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Struct validates s against its validate tags. It returns nil or *Error.
func Struct(s any) error {
	return toError(validate.Struct(s))
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	return toError(validate.Var(value, tag))
}

// IsFieldValid reports whether the named struct field of s passes its rules.
func IsFieldValid(s any, field string) bool {
	return validate.StructPartial(s, field) == nil
}

func toError(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fault.Wrap(fault.KindValidation, err)
	}
	out := &Error{Fields: make(map[string]string, len(ves))}
	for _, fe := range ves {
		out.Fields[fe.Field()] = message(fe.Field(), fe)
	}
	return out
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// IsName reports whether s looks like a person's display name.
func IsName(s string) bool {
	return nameRe.MatchString(strings.TrimSpace(s))
}

// IsPhone reports whether s is a phone number of 10 to 15 digits.
func IsPhone(s string) bool {
	return phoneRe.MatchString(s)
}

// IsStrongPassword reports whether s has at least 8 characters including a
// letter and a digit.
func IsStrongPassword(s string) bool {
	return len([]rune(s)) >= 8 && letterRe.MatchString(s) && digitRe.MatchString(s)
}
