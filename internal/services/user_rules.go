package services

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/pkg/password"

	"github.com/go-playground/validator/v10"
)

// Mode selects the rule set and sanitizer behaviour for a write.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

type createUserForm struct {
	Name                 string `json:"name" validate:"required,min=3,max=255"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8,bcrypt_len,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type updateUserForm struct {
	Name                 string `json:"name" validate:"required,min=3,max=255"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"omitempty,min=8,bcrypt_len,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// NewValidator returns a validator that reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt refuses longer secrets, so the limit is in bytes, not characters
	_ = v.RegisterValidation("bcrypt_len", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= password.MaxBytes
	})
	return v
}

// NormalizePayload trims every value except the credential fields,
// which are taken verbatim.
func NormalizePayload(p models.Payload) models.Payload {
	out := make(models.Payload, len(p))
	for k, v := range p {
		if k == models.FieldPassword || k == models.FieldPasswordConfirmation {
			out[k] = v
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// filled reports whether key holds something other than whitespace.
func filled(p models.Payload, key string) bool {
	return strings.TrimSpace(p[key]) != ""
}

// ValidateUserPayload applies the rule set for mode. currentID is the record
// being updated and is excluded from the email uniqueness check.
func ValidateUserPayload(ctx context.Context, v *validator.Validate, repo repositories.UserRepository, p models.Payload, mode Mode, currentID string) error {
	pw := p[models.FieldPassword]
	if !filled(p, models.FieldPassword) {
		pw = ""
	}

	var form interface{}
	if mode == ModeUpdate {
		form = &updateUserForm{Name: p[models.FieldName], Email: p[models.FieldEmail], Password: pw, PasswordConfirmation: p[models.FieldPasswordConfirmation]}
	} else {
		form = &createUserForm{Name: p[models.FieldName], Email: p[models.FieldEmail], Password: pw, PasswordConfirmation: p[models.FieldPasswordConfirmation]}
	}

	verr := newValidationError()
	if err := v.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), formatFieldError(fe))
		}
	}

	if email := p[models.FieldEmail]; email != "" {
		exceptID := ""
		if mode == ModeUpdate {
			exceptID = currentID
		}
		taken, err := repo.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return &StorageError{Op: "email uniqueness check", Err: err}
		}
		if taken {
			verr.Add(models.FieldEmail, "has already been taken")
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// FormatValidationErrors converts validator errors of any struct into field -> messages.
func FormatValidationErrors(err error) map[string][]string {
	out := make(map[string][]string)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["payload"] = []string{"invalid payload"}
		return out
	}
	for _, fe := range fieldErrs {
		out[fe.Field()] = append(out[fe.Field()], formatFieldError(fe))
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "bcrypt_len":
		return "must not be longer than " + strconv.Itoa(password.MaxBytes) + " bytes"
	case "eqfield":
		return "confirmation does not match"
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}
