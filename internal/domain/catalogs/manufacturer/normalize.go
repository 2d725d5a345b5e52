package manufacturer

import (
	"regexp"
	"strings"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
)

var (
	countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
	slugInvalidRun     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases name, turns every run of non [a-z0-9] characters into a
// single hyphen and trims hyphens from both ends.
func Slugify(name string) string {
	s := slugInvalidRun.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// ErrInvalidCountryCode is returned for codes that are not two letters.
func ErrInvalidCountryCode() *apperror.AppError {
	return apperror.NewValidation("Country code must be a 2-letter uppercase ISO code").
		WithDetail("field", "countryCode")
}

// ErrLogoNotFound is returned when a logo public id matches no file.
func ErrLogoNotFound(publicID string) *apperror.AppError {
	return apperror.NewValidation("Logo image not found").
		WithDetail("field", "logoImageId").
		WithDetail("value", publicID)
}

// ErrDuplicateName is returned when the name is already taken.
func ErrDuplicateName(name string) *apperror.AppError {
	return apperror.NewDuplicate(EntityName, "name", name)
}

// NormalizeCountryCode uppercases and validates a country code.
// Empty input is treated as absent.
func NormalizeCountryCode(code *string) (*string, error) {
	c := trimmed(code)
	if c == nil {
		return nil, nil
	}
	upper := strings.ToUpper(*c)
	if !countryCodePattern.MatchString(upper) {
		return nil, ErrInvalidCountryCode()
	}
	return &upper, nil
}

// normalizeLogoID trims the logo public id and rejects values that cannot be a file id.
func normalizeLogoID(logo *string) (*string, error) {
	l := trimmed(logo)
	if l == nil {
		return nil, nil
	}
	if !id.Valid(*l) {
		return nil, ErrLogoNotFound(*l)
	}
	return l, nil
}

// trimmed returns nil for nil or blank input, the trimmed value otherwise.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
