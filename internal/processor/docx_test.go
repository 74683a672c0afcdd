package processor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func document(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + wordNS + `"><w:body>` + body + `</w:body></w:document>`
}

func para(runs ...string) string {
	return "<w:p>" + strings.Join(runs, "") + "</w:p>"
}

func run(text string) string {
	return "<w:r><w:t>" + text + "</w:t></w:r>"
}

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func docxWithBody(t *testing.T, body string) []byte {
	return buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   document(body),
	})
}

func readPart(t *testing.T, docx []byte, name string) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range reader.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(content)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

// paragraphTexts returns the visible text of each w:p, with w:br as "\n".
func paragraphTexts(t *testing.T, content string) []string {
	t.Helper()
	decoder := xml.NewDecoder(strings.NewReader(content))

	var paragraphs []string
	var current strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				paragraphs = append(paragraphs, current.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}
	return paragraphs
}

func renderBody(t *testing.T, opts Options, body string, data map[string]string) []string {
	t.Helper()
	out, err := NewDocxProcessor(opts).Render(docxWithBody(t, body), data)
	require.NoError(t, err)
	return paragraphTexts(t, readPart(t, out, documentPart))
}

func TestRender_SimplePlaceholders(t *testing.T) {
	got := renderBody(t, DefaultOptions(),
		para(run("Dear {Name},"))+para(run("Joining on {Date of Joining} at {Place of Joining}")),
		map[string]string{
			"Name":             "Asha Rao",
			"Date of Joining":  "01-July-2024",
			"Place of Joining": "Pune",
		})

	assert.Equal(t, []string{"Dear Asha Rao,", "Joining on 01-July-2024 at Pune"}, got)
}

func TestRender_PlaceholderSplitAcrossRuns(t *testing.T) {
	body := para(
		run("Dear {Na"),
		"<w:r><w:rPr><w:b/></w:rPr><w:t>me}</w:t></w:r>",
		run("!"),
	)

	got := renderBody(t, DefaultOptions(), body, map[string]string{"Name": "Asha"})
	assert.Equal(t, []string{"Dear Asha!"}, got)
}

func TestRender_EscapesValues(t *testing.T) {
	got := renderBody(t, DefaultOptions(), para(run("{Name}")), map[string]string{"Name": `A & B <C> "D"`})
	assert.Equal(t, []string{`A & B <C> "D"`}, got)
}

func TestRender_LinebreaksInValues(t *testing.T) {
	got := renderBody(t, DefaultOptions(), para(run("{Address}")), map[string]string{"Address": "12 Park Street\r\nKolkata"})
	assert.Equal(t, []string{"12 Park Street\nKolkata"}, got)
}

func TestRender_PreservesWhitespaceAroundValues(t *testing.T) {
	out, err := NewDocxProcessor(DefaultOptions()).Render(docxWithBody(t, para(run("{Name} "))), map[string]string{"Name": "Asha"})
	require.NoError(t, err)
	assert.Contains(t, readPart(t, out, documentPart), `<w:t xml:space="preserve">Asha </w:t>`)
}

func TestRender_MissingValueRendersEmpty(t *testing.T) {
	got := renderBody(t, DefaultOptions(), para(run("[{Unknown}]")), map[string]string{})
	assert.Equal(t, []string{"[]"}, got)
}

func TestRender_StrictModeRejectsMissingValue(t *testing.T) {
	opts := DefaultOptions()
	opts.Strict = true

	_, err := NewDocxProcessor(opts).Render(docxWithBody(t, para(run("{Unknown}"))), map[string]string{})
	var templateErr *TemplateError
	require.ErrorAs(t, err, &templateErr)
	assert.Contains(t, err.Error(), `no value for placeholder "Unknown"`)
	assert.Equal(t, documentPart, templateErr.Part)
}

func TestRender_ParagraphSection(t *testing.T) {
	body := para(run("{#HR Name}")) +
		para(run("Signed by {HR Name}")) +
		para(run("{/HR Name}")) +
		para(run("End"))

	shown := renderBody(t, DefaultOptions(), body, map[string]string{"HR Name": "Priya"})
	assert.Equal(t, []string{"Signed by Priya", "End"}, shown)

	hidden := renderBody(t, DefaultOptions(), body, map[string]string{"HR Name": ""})
	assert.Equal(t, []string{"End"}, hidden)
}

func TestRender_InlineInvertedSection(t *testing.T) {
	body := para(run("{^Email}No email on file{/Email}"))

	empty := renderBody(t, DefaultOptions(), body, map[string]string{"Email": ""})
	assert.Equal(t, []string{"No email on file"}, empty)

	present := renderBody(t, DefaultOptions(), body, map[string]string{"Email": "asha@example.com"})
	assert.Equal(t, []string{""}, present)
}

func TestRender_AnonymousClosingTag(t *testing.T) {
	got := renderBody(t, DefaultOptions(), para(run("{#Email}Mail: {Email}{/}")), map[string]string{"Email": "a@b.c"})
	assert.Equal(t, []string{"Mail: a@b.c"}, got)
}

func TestRender_CustomDelimiters(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiters = Delimiters{Open: "{{", Close: "}}"}

	got := renderBody(t, opts, para(run("Hi {{Name}}, see {braces}")), map[string]string{"Name": "Asha"})
	assert.Equal(t, []string{"Hi Asha, see {braces}"}, got)
}

func TestRender_TemplateErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unclosed tag", para(run("Dear {Name")), "unclosed tag"},
		{"nested open", para(run("Dear {Na{me}")), "unclosed tag"},
		{"unopened tag", para(run("Dear Name}")), "unopened tag"},
		{"empty tag", para(run("Dear {}")), "empty tag"},
		{"unnamed section", para(run("{#}x{/}")), "has no name"},
		{"mismatched section", para(run("{#Email}x{/Name}")), "does not match"},
		{"unclosed section", para(run("{#Email}x")), "unclosed section"},
		{"stray closing tag", para(run("x{/Email}")), "no matching section"},
		{"malformed markup", "<w:p><w:r><w:t>{Name}</w:t></w:p>", "malformed template markup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDocxProcessor(DefaultOptions()).Render(docxWithBody(t, tt.body), map[string]string{"Name": "x", "Email": "y"})
			var templateErr *TemplateError
			require.ErrorAs(t, err, &templateErr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRender_SectionAcrossTableBoundaryFails(t *testing.T) {
	body := "<w:tbl><w:tr><w:tc>" + para(run("{#Email}")) + "</w:tc></w:tr></w:tbl>" +
		para(run("Inside")) + para(run("{/Email}"))

	_, err := NewDocxProcessor(DefaultOptions()).Render(docxWithBody(t, body), map[string]string{"Email": ""})
	var templateErr *TemplateError
	require.ErrorAs(t, err, &templateErr)
	assert.Contains(t, err.Error(), "does not fit the document markup")
}

func TestRender_RejectsNonDocx(t *testing.T) {
	_, err := NewDocxProcessor(DefaultOptions()).Render([]byte("not a zip"), nil)
	var templateErr *TemplateError
	require.ErrorAs(t, err, &templateErr)

	noDocument := buildDocx(t, map[string]string{"word/styles.xml": "<w:styles/>"})
	_, err = NewDocxProcessor(DefaultOptions()).Render(noDocument, nil)
	require.ErrorAs(t, err, &templateErr)
	assert.Contains(t, err.Error(), "has no word/document.xml")
}

func TestRender_HeadersAndUntouchedParts(t *testing.T) {
	styles := `<?xml version="1.0"?><w:styles xmlns:w="` + wordNS + `">{NotAPlaceholder}</w:styles>`
	template := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   document(para(run("Body {Name}"))),
		"word/header1.xml":    `<w:hdr xmlns:w="` + wordNS + `">` + para(run("Header {Name}")) + `</w:hdr>`,
		"word/styles.xml":     styles,
	})

	out, err := NewDocxProcessor(DefaultOptions()).Render(template, map[string]string{"Name": "Asha"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Header Asha"}, paragraphTexts(t, readPart(t, out, "word/header1.xml")))
	assert.Equal(t, styles, readPart(t, out, "word/styles.xml"))
}

func TestExtractPlaceholders(t *testing.T) {
	body := para(run("Dear {Name}, {Name}")) +
		para(run("{#HR Name}Signed {HR Name}{/HR Name}")) +
		para(run("{Date of Joining}"))

	placeholders, err := NewDocxProcessor(DefaultOptions()).ExtractPlaceholders(docxWithBody(t, body))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "HR Name", "Date of Joining"}, placeholders)
}

func TestDetectOrientation(t *testing.T) {
	proc := NewDocxProcessor(DefaultOptions())

	landscape := docxWithBody(t, para(run("x"))+`<w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/></w:sectPr>`)
	isLandscape, err := proc.DetectOrientation(landscape)
	require.NoError(t, err)
	assert.True(t, isLandscape)

	wide := docxWithBody(t, para(run("x"))+`<w:sectPr><w:pgSz w:w="16838" w:h="11906"/></w:sectPr>`)
	isLandscape, err = proc.DetectOrientation(wide)
	require.NoError(t, err)
	assert.True(t, isLandscape)

	portrait := docxWithBody(t, para(run("x")))
	isLandscape, err = proc.DetectOrientation(portrait)
	require.NoError(t, err)
	assert.False(t, isLandscape)
}
