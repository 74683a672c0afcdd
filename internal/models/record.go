package models

import (
	"fmt"
	"strconv"
)

// Canonical field names of a candidate record.
const (
	FieldName           = "Name"
	FieldEmail          = "Email"
	FieldContact        = "Contact"
	FieldDateOfJoining  = "Date of Joining"
	FieldDesignation    = "Designation"
	FieldPlaceOfJoining = "Place of Joining"
	FieldAddress        = "Address"
	FieldHRName         = "HR Name"
	FieldHRDesignation  = "HR Designation"
	FieldEffectiveDate  = "Effective Date"
)

// CanonicalFields lists the record fields every template may reference, in sheet order.
var CanonicalFields = []string{
	FieldName,
	FieldEmail,
	FieldContact,
	FieldDateOfJoining,
	FieldDesignation,
	FieldPlaceOfJoining,
	FieldAddress,
	FieldHRName,
	FieldHRDesignation,
	FieldEffectiveDate,
}

// DateFields are normalized to "DD-MonthName-YYYY" before rendering.
var DateFields = []string{FieldDateOfJoining, FieldEffectiveDate}

// Record is one spreadsheet row keyed by header name. Values are string,
// float64 (numeric cells and date serials), bool or nil.
type Record map[string]interface{}

// Value returns the raw value stored under field, or nil.
func (r Record) Value(field string) interface{} {
	if r == nil {
		return nil
	}
	return r[field]
}

// String returns the value of field rendered as text. Missing fields are "".
func (r Record) String(field string) string {
	return FormatValue(r.Value(field))
}

// FormatValue renders a scalar cell value the way it appears in a letter.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// NormalizedRecord is the field map handed to the document renderer.
type NormalizedRecord map[string]string

// ArchiveEntry is one generated document inside the output archive.
type ArchiveEntry struct {
	Path    string
	Content []byte
}
