package apperror

import (
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValidation_FieldErrors(t *testing.T) {
	in := struct {
		Name  string `json:"name"`
		Limit int    `json:"limit"`
	}{Limit: 500}

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Limit, validation.Max(100)),
	)
	require.Error(t, err)

	appErr := FromValidation(err)
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, "limit: must be no greater than 100", appErr.Message)

	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "cannot be blank", fields["name"])
}

func TestFromValidation_PlainError(t *testing.T) {
	appErr := FromValidation(errors.New("bad input"))
	assert.Equal(t, "bad input", appErr.Message)
	assert.Nil(t, FromValidation(nil))
}
