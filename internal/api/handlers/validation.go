package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/go-playground/validator/v10"
)

// Validator checks request bodies against the content limits in config.
// Limits are exposed to struct tags as aliases:
//
//	person_name, password, account_email, category_name,
//	event_title, event_description, event_location, search_text
//
// plus "future" and "birth_date" for time.Time fields.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(content config.ContentConfig) *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: time.Now}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.validate.RegisterAlias("person_name", fmt.Sprintf("required,max=%d", content.NameMax))
	v.validate.RegisterAlias("password", fmt.Sprintf("required,min=%d,max=%d", content.PasswordMin, content.PasswordMax))
	v.validate.RegisterAlias("account_email", fmt.Sprintf("required,email,max=%d", content.EmailLengthMax))
	v.validate.RegisterAlias("category_name", fmt.Sprintf("required,max=%d", content.CategoryNameMax))
	v.validate.RegisterAlias("event_title", fmt.Sprintf("required,max=%d", content.TitleMax))
	v.validate.RegisterAlias("event_description", fmt.Sprintf("required,max=%d", content.DescriptionMax))
	v.validate.RegisterAlias("event_location", fmt.Sprintf("required,max=%d", content.LocationMax))
	v.validate.RegisterAlias("search_text", fmt.Sprintf("max=%d", content.SearchLengthMax))
	v.validate.RegisterAlias("capacity", fmt.Sprintf("gt=0,max=%d", content.MaxParticipants))

	_ = v.validate.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.Before(v.now())
	})
	_ = v.validate.RegisterValidation("birth_date", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok || t.IsZero() {
			return false
		}
		now := v.now()
		if !t.Before(now) || t.After(now.AddDate(-content.MinimumAgeYears, 0, 0)) {
			return false
		}
		return content.MaximumAgeYears <= 0 || !t.Before(now.AddDate(-content.MaximumAgeYears, 0, 0))
	})
	return v
}

// ValidationError maps request fields to messages.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s and returns a ValidationError listing every failing
// field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationError, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters long"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "future":
		return "must be in the future"
	case "birth_date":
		return "must be a past date within the allowed age range"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
