package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRows(t *testing.T) {
	rows := modelRows(7, []demoModel{
		{name: "F-150", yearStart: 1975},
		{name: "Celica", yearStart: 1970, yearEnd: year(2006)},
	})
	require.Len(t, rows, 2)

	for _, r := range rows {
		assert.Len(t, r, len(modelColumns))
		assert.Equal(t, int64(7), r[1])
	}
	assert.Equal(t, "f-150", rows[0][4])
	assert.Nil(t, rows[0][6])
	assert.Equal(t, 2006, *rows[1][6].(*int))
}
