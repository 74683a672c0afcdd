package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"DF-APPT/internal/models"

	"github.com/araddon/dateparse"
)

// Spreadsheet serial 0 is 1899-12-30. The largest serial a spreadsheet
// accepts is 9999-12-31.
const maxDateSerial = 2958465

var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Layouts tried before falling back to dateparse. Slash dates are left to
// dateparse, which reads them month-first.
var dateLayouts = []string{
	"02-January-2006",
	"2-January-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"2 January 2006",
	"January 2, 2006",
}

// Normalize produces the field map a template is rendered with. Every
// canonical field is present, date fields are in "DD-MonthName-YYYY" form
// where they could be read, and extra columns are carried through as text.
func Normalize(rec models.Record) models.NormalizedRecord {
	out := make(models.NormalizedRecord, len(models.CanonicalFields)+len(rec))
	for key, value := range rec {
		out[key] = models.FormatValue(value)
	}
	for _, field := range models.CanonicalFields {
		if _, ok := out[field]; !ok {
			out[field] = ""
		}
	}
	for _, field := range models.DateFields {
		out[field] = NormalizeDate(rec.Value(field))
	}
	return out
}

// NormalizeDate renders a date cell. Numbers are spreadsheet serials,
// strings are parsed, and anything unreadable is returned unchanged.
// A zero serial counts as an empty cell.
func NormalizeDate(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return serialDate(v)
	case int:
		return serialDate(float64(v))
	case int64:
		return serialDate(float64(v))
	case time.Time:
		return FormatDate(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return v
		}
		if t, ok := parseDateString(s); ok {
			return FormatDate(t)
		}
	}
	return models.FormatValue(value)
}

func serialDate(serial float64) string {
	if serial == 0 {
		return ""
	}
	if t, ok := SerialToDate(serial); ok {
		return FormatDate(t)
	}
	return models.FormatValue(serial)
}

// SerialToDate converts a spreadsheet date serial. The fractional time of
// day is dropped.
func SerialToDate(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 || serial > maxDateSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

// FormatDate renders t as "05-March-2024".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d-%s-%04d", t.Day(), t.Month().String(), t.Year())
}

func parseDateString(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
