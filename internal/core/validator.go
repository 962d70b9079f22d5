package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mentorship/internal/types"
)

// Validator wraps go-playground/validator with the rules used by the intake
// forms and translates failures into FieldErrors keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags:
//   - notblank: the string contains at least one non-whitespace character.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validateNotBlank); err != nil {
		logger.Error("failed to register notblank validator", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateStruct validates s. Rule violations are returned as an AppError
// with code validation_failed whose Details["errors"] lists every field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	fields := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: describeFieldError(fe)})
	}

	return types.NewAppErrorWithDetails(
		classifyFieldErrors(fieldErrs),
		fields[0].Field+" "+fields[0].Message,
		err,
		map[string]any{"errors": fields},
	)
}

// classifyFieldErrors picks the most specific code when every failure shares
// a cause, and validation_failed otherwise.
func classifyFieldErrors(fieldErrs validator.ValidationErrors) types.ErrorCode {
	code := codeForTag(fieldErrs[0].Tag())
	for _, fe := range fieldErrs[1:] {
		if codeForTag(fe.Tag()) != code {
			return types.ErrCodeValidationFailed
		}
	}
	return code
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required", "notblank":
		return types.ErrCodeValidationMissingField
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "max":
		return types.ErrCodeValidationTooLong
	default:
		return types.ErrCodeValidationFailed
	}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}
