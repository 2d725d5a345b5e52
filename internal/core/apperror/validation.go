package apperror

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FromValidation converts ozzo-validation errors into a 400. Field errors
// land in Details["fields"] keyed by json name; the message names the first
// failing field so clients without detail parsing still get a hint.
func FromValidation(err error) *AppError {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return NewValidation(err.Error()).WithCause(err)
	}

	fields := make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for name, fe := range fieldErrs {
		if fe == nil {
			continue
		}
		fields[name] = fe.Error()
		names = append(names, name)
	}
	sort.Strings(names)

	msg := "Validation failed"
	if len(names) > 0 {
		msg = names[0] + ": " + fields[names[0]]
	}
	return NewValidation(msg).WithDetail("fields", fields).WithCause(err)
}
