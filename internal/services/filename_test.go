package services

import (
	"testing"

	"DF-APPT/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilename(t *testing.T) {
	tests := []struct {
		name interface{}
		want string
	}{
		{"John@Doe#2024", "JohnDoe2024.docx"},
		{"  Asha Rao  ", "Asha Rao.docx"},
		{"Dr. A-B_C", "Dr. A-B_C.docx"},
		{"Zoë/../Ünal", "Zo..nal.docx"},
		{"@@@", FallbackFilename},
		{"", FallbackFilename},
		{nil, FallbackFilename},
		{123.0, "123.docx"},
	}

	for _, tt := range tests {
		got := BuildFilename(models.Record{models.FieldName: tt.name})
		assert.Equal(t, tt.want, got, "name %v", tt.name)
	}
}

func TestBuildFilename_MissingNameField(t *testing.T) {
	assert.Equal(t, FallbackFilename, BuildFilename(models.Record{}))
}

func TestEntryPath(t *testing.T) {
	assert.Equal(t, "Other/Asha.docx", EntryPath("Other", "Asha.docx", ".docx"))
	assert.Equal(t, "Other/Asha.pdf", EntryPath("Other", "Asha.docx", ".pdf"))
	assert.Equal(t, "Asha.docx", EntryPath("", "Asha.docx", ""))
}
