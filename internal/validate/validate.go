package validate

import (
	"errors"
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// ErrInvalid is the sentinel wrapped by every *Error.
var ErrInvalid = errors.New("validation failed")

// FieldError is one failed rule.
type FieldError struct {
	Field  string
	Reason string
}

// Error lists every rule a request failed.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Credentials is a normalized login request.
type Credentials struct {
	Email    string
	Password string
}

// Password length limits, counted in characters.
const (
	MinPasswordLength    = 1
	MaxPasswordLength    = 128
	MinStrongPasswordLen = 12
)

type loginRequest struct {
	Email    string `validate:"required,min=3,max=254,email"`
	Password string `validate:"required,min=1,max=128"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once

	strict     *bluemonday.Policy
	strictOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func policy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login validates and normalizes a login request.
func Login(email, password string) (Credentials, error) {
	req := loginRequest{Email: NormalizeEmail(email), Password: password}
	if err := instance().Struct(req); err != nil {
		return Credentials{}, toError(err, "request")
	}
	return Credentials{Email: req.Email, Password: req.Password}, nil
}

// Email validates a single address and returns it normalized.
func Email(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if err := instance().Var(normalized, "required,min=3,max=254,email"); err != nil {
		return "", toError(err, "email")
	}
	return normalized, nil
}

// PasswordStrength applies the creation and change policy: at least
// MinStrongPasswordLen characters with lower-case, upper-case, digit and
// symbol classes, at most MaxPasswordLength.
func PasswordStrength(password string) error {
	var fields []FieldError
	n := len([]rune(password))
	if n < MinStrongPasswordLen {
		fields = append(fields, FieldError{Field: "password", Reason: "too short"})
	}
	if n > MaxPasswordLength {
		fields = append(fields, FieldError{Field: "password", Reason: "too long"})
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !lower {
		fields = append(fields, FieldError{Field: "password", Reason: "needs a lower-case letter"})
	}
	if !upper {
		fields = append(fields, FieldError{Field: "password", Reason: "needs an upper-case letter"})
	}
	if !digit {
		fields = append(fields, FieldError{Field: "password", Reason: "needs a digit"})
	}
	if !symbol {
		fields = append(fields, FieldError{Field: "password", Reason: "needs a symbol"})
	}

	if len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}

// SanitizeText strips all markup from s and removes any remaining angle
// brackets.
func SanitizeText(s string) string {
	clean := html.UnescapeString(policy().Sanitize(s))
	clean = strings.NewReplacer("<", "", ">", "").Replace(clean)
	return strings.TrimSpace(clean)
}

func toError(err error, field string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Fields: []FieldError{{Field: field, Reason: "invalid"}}}
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if name == "" {
			name = field
		}
		out.Fields = append(out.Fields, FieldError{Field: name, Reason: reasonFor(fe)})
	}
	return out
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "malformed"
	case "min":
		return "too short"
	case "max":
		return "too long"
	}
	return "invalid"
}
