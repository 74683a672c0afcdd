package processor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const documentPart = "word/document.xml"

var templatedPart = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)

// Delimiters surround placeholder names in the template text.
type Delimiters struct {
	Open  string
	Close string
}

type Options struct {
	Delimiters Delimiters
	// ParagraphLoop drops the whole paragraph of a section tag that stands
	// alone in it.
	ParagraphLoop bool
	// Linebreaks turns "\n" in values into Word line breaks.
	Linebreaks bool
	// Strict fails rendering when a placeholder has no value.
	Strict bool
}

func DefaultOptions() Options {
	return Options{
		Delimiters:    Delimiters{Open: "{", Close: "}"},
		ParagraphLoop: true,
		Linebreaks:    true,
	}
}

// DocxProcessor substitutes placeholders in DOCX templates held in memory.
// It keeps no per-document state and is safe for concurrent use.
type DocxProcessor struct {
	opts Options
}

func NewDocxProcessor(opts Options) *DocxProcessor {
	if opts.Delimiters.Open == "" || opts.Delimiters.Close == "" {
		opts.Delimiters = DefaultOptions().Delimiters
	}
	return &DocxProcessor{opts: opts}
}

// Render fills template with data and returns the finished document.
func (dp *DocxProcessor) Render(template []byte, data map[string]string) ([]byte, error) {
	reader, err := openDocx(template)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, file := range reader.File {
		content, err := readZipFile(file)
		if err != nil {
			return nil, &TemplateError{Part: file.Name, Message: "failed to read part", Cause: err}
		}

		if templatedPart.MatchString(file.Name) {
			content, err = dp.renderPart(content, data)
			if err != nil {
				return nil, withPart(err, file.Name)
			}
		}

		method := file.Method
		if method != zip.Store {
			method = zip.Deflate
		}
		w, err := zipWriter.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   method,
			Modified: file.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", file.Name, err)
		}
		if len(content) == 0 {
			continue
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", file.Name, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx container: %w", err)
	}

	return buf.Bytes(), nil
}

// ExtractPlaceholders returns the distinct tag names used by template, in
// document order.
func (dp *DocxProcessor) ExtractPlaceholders(template []byte) ([]string, error) {
	reader, err := openDocx(template)
	if err != nil {
		return nil, err
	}

	var placeholders []string
	seen := make(map[string]bool)

	for _, file := range reader.File {
		if !templatedPart.MatchString(file.Name) {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return nil, &TemplateError{Part: file.Name, Message: "failed to read part", Cause: err}
		}

		tags, err := scanTags(indexText(string(content)).text, dp.opts.Delimiters)
		if err != nil {
			return nil, withPart(err, file.Name)
		}
		for _, t := range tags {
			if t.kind == tagClose || seen[t.name] {
				continue
			}
			seen[t.name] = true
			placeholders = append(placeholders, t.name)
		}
	}

	return placeholders, nil
}

func (dp *DocxProcessor) renderPart(content []byte, data map[string]string) ([]byte, error) {
	src := string(content)
	if err := checkWellFormed(src); err != nil {
		return nil, &TemplateError{Message: "malformed template markup", Cause: err}
	}

	idx := indexText(src)
	tags, err := scanTags(idx.text, dp.opts.Delimiters)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return content, nil
	}

	tree, err := buildTree(tags)
	if err != nil {
		return nil, err
	}

	edits, err := dp.plan(idx, tree, data)
	if err != nil {
		return nil, err
	}

	out, err := applyEdits(src, edits)
	if err != nil {
		return nil, err
	}
	out = strings.ReplaceAll(out, "<w:t>", `<w:t xml:space="preserve">`)

	if err := checkWellFormed(out); err != nil {
		return nil, &TemplateError{Message: "placeholder structure does not fit the document markup", Cause: err}
	}

	return []byte(out), nil
}

type edit struct {
	start int
	end   int
	repl  string
}

func (dp *DocxProcessor) plan(idx *textIndex, nodes []*node, data map[string]string) ([]edit, error) {
	var edits []edit

	var walk func(nodes []*node) error
	walk = func(nodes []*node) error {
		for _, n := range nodes {
			value, ok := data[n.tag.name]
			if !ok && dp.opts.Strict {
				return &TemplateError{Message: fmt.Sprintf("no value for placeholder %q", n.tag.name)}
			}

			if n.tag.kind == tagValue {
				s, e := idx.span(n.tag)
				edits = append(edits, edit{start: s, end: e, repl: dp.renderValue(value) + tagsWithin(idx.xml[s:e])})
				continue
			}

			show := value != ""
			if n.tag.kind == tagInverted {
				show = !show
			}
			if !show {
				edits = append(edits, dp.removeSection(idx, n.tag, *n.closing))
				continue
			}

			edits = append(edits, dp.removeTag(idx, n.tag), dp.removeTag(idx, *n.closing))
			if err := walk(n.children); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(nodes); err != nil {
		return nil, err
	}
	return edits, nil
}

func (dp *DocxProcessor) removeTag(idx *textIndex, t tag) edit {
	if dp.opts.ParagraphLoop {
		if ps, pe, ok := idx.paragraphOf(t); ok {
			return edit{start: ps, end: pe}
		}
	}
	s, e := idx.span(t)
	return edit{start: s, end: e, repl: tagsWithin(idx.xml[s:e])}
}

func (dp *DocxProcessor) removeSection(idx *textIndex, open, closing tag) edit {
	if dp.opts.ParagraphLoop {
		ps, _, okOpen := idx.paragraphOf(open)
		_, pe, okClose := idx.paragraphOf(closing)
		if okOpen && okClose {
			return edit{start: ps, end: pe}
		}
	}
	s, _ := idx.span(open)
	_, e := idx.span(closing)
	return edit{start: s, end: e, repl: tagsWithin(idx.xml[s:e])}
}

func (dp *DocxProcessor) renderValue(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")

	lines := []string{value}
	if dp.opts.Linebreaks {
		lines = strings.Split(value, "\n")
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`</w:t><w:br/><w:t xml:space="preserve">`)
		}
		_ = xml.EscapeText(&b, []byte(line))
	}
	return b.String()
}

func applyEdits(src string, edits []edit) (string, error) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, e := range edits {
		if e.start < last {
			return "", &TemplateError{Message: "overlapping template tags"}
		}
		b.WriteString(src[last:e.start])
		b.WriteString(e.repl)
		last = e.end
	}
	b.WriteString(src[last:])

	return b.String(), nil
}

func checkWellFormed(s string) error {
	decoder := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func openDocx(template []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, &TemplateError{Message: "failed to open docx container", Cause: err}
	}
	for _, file := range reader.File {
		if file.Name == documentPart {
			return reader, nil
		}
	}
	return nil, &TemplateError{Message: "docx container has no " + documentPart}
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func withPart(err error, part string) error {
	if te, ok := err.(*TemplateError); ok && te.Part == "" {
		te.Part = part
	}
	return err
}
