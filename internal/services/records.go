package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"DF-APPT/internal/models"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xuri/excelize/v2"
)

// tableSchema describes the "data" field of a JSON upload: a header row
// followed by value rows.
const tableSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "array",
    "items": {"type": ["string", "number", "boolean", "null"]}
  }
}`

var tableSchemaLoader = gojsonschema.NewStringLoader(tableSchema)

// RecordsFromTable zips the header row with every following row. Short rows
// leave the remaining fields unset and extra cells are ignored.
func RecordsFromTable(table [][]interface{}) []models.Record {
	if len(table) < 2 {
		return nil
	}

	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		header[i] = strings.TrimSpace(models.FormatValue(h))
	}

	records := make([]models.Record, 0, len(table)-1)
	for _, row := range table[1:] {
		rec := make(models.Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = nil
			}
		}
		records = append(records, rec)
	}
	return records
}

// DecodeTable reads the "data" field of a JSON upload. The field may hold
// the table itself or a string containing it as JSON.
func DecodeTable(raw json.RawMessage) ([][]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, &InputError{Message: MsgNoData}
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, &InputError{Message: "Invalid data payload", Cause: err}
		}
		raw = json.RawMessage(strings.TrimSpace(encoded))
	}

	result, err := gojsonschema.Validate(tableSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &InputError{Message: "Invalid data payload", Cause: err}
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, &InputError{Message: "Invalid data payload", Cause: fmt.Errorf("%s", strings.Join(messages, "; "))}
	}

	var table [][]interface{}
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, &InputError{Message: "Invalid data payload", Cause: err}
	}
	return table, nil
}

// RecordsFromJSON decodes a JSON upload's "data" field into records.
func RecordsFromJSON(raw json.RawMessage) ([]models.Record, error) {
	table, err := DecodeTable(raw)
	if err != nil {
		return nil, err
	}
	records := RecordsFromTable(table)
	if len(records) == 0 {
		return nil, &InputError{Message: MsgNoRows}
	}
	return records, nil
}

// ReadSpreadsheet parses the first sheet of a workbook on disk.
func ReadSpreadsheet(path string) ([]models.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &InputError{Message: "Failed to read spreadsheet", Cause: err}
	}
	defer f.Close()
	return readFirstSheet(f)
}

// ReadSpreadsheetFrom parses the first sheet of a workbook read from r.
func ReadSpreadsheetFrom(r io.Reader) ([]models.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &InputError{Message: "Failed to read spreadsheet", Cause: err}
	}
	defer f.Close()
	return readFirstSheet(f)
}

// readFirstSheet uses the first row as headers. Numeric cells become
// float64 so date serials reach the normalizer as numbers. Blank rows are
// skipped and blank cells are left out of the record.
func readFirstSheet(f *excelize.File) ([]models.Record, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &InputError{Message: MsgNoRows}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &InputError{Message: "Failed to read spreadsheet", Cause: err}
	}
	if len(rows) < 2 {
		return nil, &InputError{Message: MsgNoRows}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var records []models.Record
	for r, row := range rows[1:] {
		rec := make(models.Record)
		for c, raw := range row {
			if c >= len(header) || header[c] == "" || raw == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}
			value, err := cellValue(f, sheet, cell, raw)
			if err != nil {
				return nil, err
			}
			rec[header[c]] = value
		}
		if len(rec) == 0 {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &InputError{Message: MsgNoRows}
	}
	return records, nil
}

func cellValue(f *excelize.File, sheet, cell, raw string) (interface{}, error) {
	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell type of %s: %w", cell, err)
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return raw, nil
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	return raw, nil
}

// uploadBody is the JSON upload shape.
type uploadBody struct {
	Data json.RawMessage `json:"data"`
}

// DecodeUploadBody reads a JSON upload body of the form {"data": ...}.
func DecodeUploadBody(body []byte) ([]models.Record, error) {
	var payload uploadBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &InputError{Message: "Invalid JSON body", Cause: err}
	}
	return RecordsFromJSON(payload.Data)
}

// LoadRecordsFile reads records from a .json upload body, a bare JSON table
// or a spreadsheet, chosen by extension.
func LoadRecordsFile(path string) ([]models.Record, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return ReadSpreadsheet(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 && trimmed[0] == '[' {
		return RecordsFromJSON(trimmed)
	}
	return DecodeUploadBody(content)
}
