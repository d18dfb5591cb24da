package validation

import (
	"strings"
	"testing"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTenor(t *testing.T) {
	cases := []struct {
		months int
		ok     bool
	}{
		{models.MinTenorMonths, true},
		{models.MaxTenorMonths, true},
		{24, true},
		{models.MinTenorMonths - 1, false},
		{models.MaxTenorMonths + 3, false},
		{14, false},
		{0, false},
	}
	for _, tc := range cases {
		v := New()
		v.Tenor("tenor_months", tc.months)
		assert.Equal(t, tc.ok, v.Valid(), "tenor %d", tc.months)
	}
}

func TestGoldAmount(t *testing.T) {
	v := New()
	v.GoldAmount("gold_grams", decimal.RequireFromString("1.5"))
	assert.True(t, v.Valid())

	v = New()
	v.GoldAmount("gold_grams", decimal.RequireFromString("0.0000001"))
	assert.False(t, v.Valid())
}

func TestNoteAndReference(t *testing.T) {
	v := New()
	v.Note("note", strings.Repeat("x", MaxNoteLength))
	v.Reference("external_ref", strings.Repeat("r", MaxReferenceLength))
	assert.True(t, v.Valid())

	v = New()
	v.Note("note", strings.Repeat("x", MaxNoteLength+1))
	v.Reference("external_ref", "")
	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "note")
	assert.Contains(t, v.Errors, "external_ref")
}
