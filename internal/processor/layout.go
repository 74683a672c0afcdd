package processor

import (
	"strconv"
	"strings"
)

// DocumentLayout holds the page geometry of a document's last section, in points.
type DocumentLayout struct {
	PageWidth  float64
	PageHeight float64
	Landscape  bool
}

// Letter size portrait, the Word default when a document has no w:pgSz.
func defaultLayout() DocumentLayout {
	return DocumentLayout{
		PageWidth:  612,
		PageHeight: 792,
	}
}

// DetectOrientation reports whether the document is laid out in landscape.
func (dp *DocxProcessor) DetectOrientation(docx []byte) (bool, error) {
	reader, err := openDocx(docx)
	if err != nil {
		return false, err
	}

	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return false, &TemplateError{Part: file.Name, Message: "failed to read part", Cause: err}
		}
		return ParseLayout(string(content)).Landscape, nil
	}

	return false, nil
}

// ParseLayout reads the w:sectPr page size of document.xml content.
func ParseLayout(content string) DocumentLayout {
	layout := defaultLayout()

	sectStart := strings.LastIndex(content, "<w:sectPr")
	if sectStart == -1 {
		return layout
	}
	sectContent := content[sectStart:]
	if sectEnd := strings.Index(sectContent, "</w:sectPr>"); sectEnd != -1 {
		sectContent = sectContent[:sectEnd]
	}

	pgSzStart := strings.Index(sectContent, "<w:pgSz")
	if pgSzStart == -1 {
		return layout
	}
	pgSzTag := sectContent[pgSzStart:]
	if pgSzEnd := strings.Index(pgSzTag, "/>"); pgSzEnd != -1 {
		pgSzTag = pgSzTag[:pgSzEnd]
	}

	if width := parseTwips(attribute(pgSzTag, "w:w")); width > 0 {
		layout.PageWidth = width
	}
	if height := parseTwips(attribute(pgSzTag, "w:h")); height > 0 {
		layout.PageHeight = height
	}

	if orientation := attribute(pgSzTag, "w:orient"); orientation != "" {
		layout.Landscape = orientation == "landscape"
	} else {
		layout.Landscape = layout.PageWidth > layout.PageHeight
	}

	return layout
}

func attribute(tag, name string) string {
	start := strings.Index(tag, name+`="`)
	if start == -1 {
		return ""
	}
	start += len(name) + 2
	end := strings.Index(tag[start:], `"`)
	if end == -1 {
		return ""
	}
	return tag[start : start+end]
}

// parseTwips converts twentieths of a point to points.
func parseTwips(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v / 20.0
}
