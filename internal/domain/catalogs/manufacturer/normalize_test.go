package manufacturer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Tesla", "tesla"},
		{"Mercedes-Benz", "mercedes-benz"},
		{"  Alfa   Romeo  ", "alfa-romeo"},
		{"Rolls--Royce!!", "rolls-royce"},
		{"Škoda Auto", "koda-auto"},
		{"3M", "3m"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.name))
		})
	}
}

func TestNormalizeCountryCode(t *testing.T) {
	got, err := NormalizeCountryCode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	in := "gb"
	got, err = NormalizeCountryCode(&in)
	require.NoError(t, err)
	assert.Equal(t, "GB", *got)

	bad := "g"
	_, err = NormalizeCountryCode(&bad)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusActive, ParseStatus("ACTIVE"))
	assert.Equal(t, StatusInactive, ParseStatus("inactive"))
	assert.Equal(t, StatusAll, ParseStatus(""))
	assert.Equal(t, StatusAll, ParseStatus("deleted"))
}
