package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorship/internal/types"
)

type validatedForm struct {
	Name  string `json:"name" validate:"notblank,max=200"`
	Email string `json:"email" validate:"required,email"`
	Why   string `json:"why" validate:"max=5000"`
}

func validationFields(t *testing.T, err error) (*types.AppError, []FieldError) {
	t.Helper()
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	fields, ok := appErr.Details["errors"].([]FieldError)
	require.True(t, ok)
	return appErr, fields
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(discardLogger())
	assert.NoError(t, v.ValidateStruct(validatedForm{Name: "Asha", Email: "asha@example.com"}))
}

func TestValidateStruct_BlankName(t *testing.T) {
	v := NewValidator(discardLogger())
	appErr, fields := validationFields(t, v.ValidateStruct(validatedForm{Name: "   ", Email: "asha@example.com"}))

	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, []FieldError{{Field: "name", Message: "is required"}}, fields)
	assert.Equal(t, "name is required", appErr.Message)
}

func TestValidateStruct_InvalidEmail(t *testing.T) {
	v := NewValidator(discardLogger())
	appErr, fields := validationFields(t, v.ValidateStruct(validatedForm{Name: "Asha", Email: "asha-at-example"}))

	assert.Equal(t, types.ErrCodeValidationInvalidEmail, appErr.Code)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "must be a valid email address", fields[0].Message)
}

func TestValidateStruct_MaxCountsRunes(t *testing.T) {
	v := NewValidator(discardLogger())

	// 5000 multi-byte runes are within the limit.
	assert.NoError(t, v.ValidateStruct(validatedForm{Name: "Asha", Email: "a@b.co", Why: strings.Repeat("ज", 5000)}))

	appErr, fields := validationFields(t, v.ValidateStruct(validatedForm{Name: "Asha", Email: "a@b.co", Why: strings.Repeat("a", 5001)}))
	assert.Equal(t, types.ErrCodeValidationTooLong, appErr.Code)
	assert.Equal(t, "must be at most 5000 characters", fields[0].Message)
}

func TestValidateStruct_MixedFailures(t *testing.T) {
	v := NewValidator(discardLogger())
	appErr, fields := validationFields(t, v.ValidateStruct(validatedForm{Name: "", Email: "nope"}))

	assert.Equal(t, types.ErrCodeValidationFailed, appErr.Code)
	assert.Len(t, fields, 2)
	assert.Equal(t, 400, appErr.HTTPStatus())
}
