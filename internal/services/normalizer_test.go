package services

import (
	"math"
	"testing"
	"time"

	"DF-APPT/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"serial", 45474.0, "01-July-2024"},
		{"serial with time of day", 45474.75, "01-July-2024"},
		{"integer serial", 45356, "05-March-2024"},
		// Zero is an empty cell, not 30-December-1899.
		{"serial zero", 0.0, ""},
		{"integer zero", 0, ""},
		{"canonical string", "05-March-2024", "05-March-2024"},
		{"iso string", "2024-03-05", "05-March-2024"},
		{"slashes read month first", "07/01/2024", "01-July-2024"},
		{"slashes with month out of range", "13/01/2024", "13/01/2024"},
		{"long form", "March 5, 2024", "05-March-2024"},
		{"time value", time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC), "01-July-2024"},
		{"unparseable string", "next monday", "next monday"},
		{"impossible date", "2024-02-30", "2024-02-30"},
		{"negative serial", -1.0, "-1"},
		{"serial past year 9999", 3000000.0, "3000000"},
		{"nan", math.NaN(), "NaN"},
		{"nil", nil, ""},
		{"empty", "", ""},
		{"blank", "   ", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.value))
		})
	}
}

func TestNormalize(t *testing.T) {
	rec := models.Record{
		models.FieldName:          "Asha Rao",
		models.FieldContact:       9876543210.0,
		models.FieldDateOfJoining: 45474.0,
		models.FieldEffectiveDate: "not a date",
		"Employee Code":           "E-17",
	}

	got := Normalize(rec)

	assert.Equal(t, "Asha Rao", got[models.FieldName])
	assert.Equal(t, "9876543210", got[models.FieldContact])
	assert.Equal(t, "01-July-2024", got[models.FieldDateOfJoining])
	assert.Equal(t, "not a date", got[models.FieldEffectiveDate])
	assert.Equal(t, "E-17", got["Employee Code"])

	for _, field := range models.CanonicalFields {
		assert.Contains(t, got, field)
	}
	assert.Equal(t, "", got[models.FieldHRName])
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	rec := models.Record{models.FieldDateOfJoining: 45474.0}
	Normalize(rec)
	assert.Equal(t, models.Record{models.FieldDateOfJoining: 45474.0}, rec)
}

func TestNormalize_NilRecord(t *testing.T) {
	got := Normalize(nil)
	assert.Len(t, got, len(models.CanonicalFields))
	for _, field := range models.CanonicalFields {
		assert.Equal(t, "", got[field])
	}
}

func TestSerialToDate(t *testing.T) {
	got, ok := SerialToDate(45474)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), got)

	_, ok = SerialToDate(math.Inf(1))
	assert.False(t, ok)
}
