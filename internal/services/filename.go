package services

import (
	"regexp"
	"strings"

	"DF-APPT/internal/models"
)

// FallbackFilename is used when a record's name has no usable characters.
const FallbackFilename = "Appointment.docx"

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9 \-_.]`)

// BuildFilename derives the archive file name from the record's Name.
// Names are not made unique; records with the same name share a path.
func BuildFilename(rec models.Record) string {
	name := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(rec.String(models.FieldName), ""))
	if name == "" {
		return FallbackFilename
	}
	return name + ".docx"
}

// EntryPath joins a rule folder and file name, swapping the extension
// when documents are converted.
func EntryPath(folder, filename, ext string) string {
	if ext != "" && ext != ".docx" {
		filename = strings.TrimSuffix(filename, ".docx") + ext
	}
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}
