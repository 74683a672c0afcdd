package processor

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
)

type tagKind int

const (
	tagValue tagKind = iota
	tagSection
	tagInverted
	tagClose
)

// tag is one delimited placeholder found in the character data of a part.
// start and end are offsets into textIndex.text, end exclusive.
type tag struct {
	kind  tagKind
	name  string
	start int
	end   int
}

// node is a tag with its nested tags when it opens a section.
type node struct {
	tag      tag
	closing  *tag
	children []*node
}

// textIndex maps the character data of an XML part back to byte offsets in
// the XML, so placeholders split across runs can be located.
type textIndex struct {
	xml  string
	text []byte
	pos  []int
}

func indexText(src string) *textIndex {
	idx := &textIndex{
		xml:  src,
		text: make([]byte, 0, len(src)/4),
		pos:  make([]int, 0, len(src)/4),
	}

	inTag := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '<':
			inTag = true
		case c == '>' && inTag:
			inTag = false
		case !inTag:
			idx.text = append(idx.text, c)
			idx.pos = append(idx.pos, i)
		}
	}

	return idx
}

// span returns the XML byte range covered by t.
func (idx *textIndex) span(t tag) (int, int) {
	return idx.pos[t.start], idx.pos[t.end-1] + 1
}

// paragraphOf returns the bounds of the w:p element holding t when t is the
// only text in that paragraph.
func (idx *textIndex) paragraphOf(t tag) (int, int, bool) {
	s, e := idx.span(t)

	pStart := lastParagraphOpen(idx.xml[:s])
	if pStart < 0 || strings.Contains(idx.xml[pStart:s], "</w:p>") {
		return 0, 0, false
	}

	rel := strings.Index(idx.xml[e:], "</w:p>")
	if rel < 0 {
		return 0, 0, false
	}
	pEnd := e + rel + len("</w:p>")

	a := sort.SearchInts(idx.pos, pStart)
	b := sort.SearchInts(idx.pos, pEnd)
	if strings.TrimSpace(string(idx.text[a:b])) != string(idx.text[t.start:t.end]) {
		return 0, 0, false
	}

	return pStart, pEnd, true
}

func lastParagraphOpen(s string) int {
	return max(strings.LastIndex(s, "<w:p>"), strings.LastIndex(s, "<w:p "))
}

// scanTags finds every delimited tag in the character data.
func scanTags(text []byte, delims Delimiters) ([]tag, error) {
	open := []byte(delims.Open)
	closing := []byte(delims.Close)

	var tags []tag
	i := 0
	for i < len(text) {
		o := bytes.Index(text[i:], open)
		c := bytes.Index(text[i:], closing)
		if o < 0 && c < 0 {
			break
		}
		if c >= 0 && (o < 0 || c < o) {
			return nil, &TemplateError{Message: fmt.Sprintf("unopened tag near %q", excerpt(text, i+c))}
		}

		start := i + o
		bodyStart := start + len(open)
		c = bytes.Index(text[bodyStart:], closing)
		if c < 0 {
			return nil, &TemplateError{Message: fmt.Sprintf("unclosed tag near %q", excerpt(text, start))}
		}
		if next := bytes.Index(text[bodyStart:], open); next >= 0 && next < c {
			return nil, &TemplateError{Message: fmt.Sprintf("unclosed tag near %q", excerpt(text, start))}
		}

		end := bodyStart + c + len(closing)
		t, err := parseTag(string(text[bodyStart : bodyStart+c]))
		if err != nil {
			return nil, err
		}
		t.start, t.end = start, end
		tags = append(tags, t)
		i = end
	}

	return tags, nil
}

func parseTag(body string) (tag, error) {
	body = strings.TrimSpace(html.UnescapeString(body))
	if body == "" {
		return tag{}, &TemplateError{Message: "empty tag"}
	}

	var t tag
	switch body[0] {
	case '#':
		t.kind, t.name = tagSection, strings.TrimSpace(body[1:])
	case '^':
		t.kind, t.name = tagInverted, strings.TrimSpace(body[1:])
	case '/':
		t.kind, t.name = tagClose, strings.TrimSpace(body[1:])
		return t, nil
	default:
		t.kind, t.name = tagValue, body
	}

	if t.name == "" {
		return tag{}, &TemplateError{Message: fmt.Sprintf("section tag %q has no name", body)}
	}
	return t, nil
}

// buildTree pairs section open and close tags.
func buildTree(tags []tag) ([]*node, error) {
	root := &node{}
	stack := []*node{root}

	for _, t := range tags {
		top := stack[len(stack)-1]
		switch t.kind {
		case tagValue:
			top.children = append(top.children, &node{tag: t})
		case tagSection, tagInverted:
			n := &node{tag: t}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case tagClose:
			if len(stack) == 1 {
				return nil, &TemplateError{Message: fmt.Sprintf("closing tag {/%s} has no matching section", t.name)}
			}
			if t.name != "" && t.name != top.tag.name {
				return nil, &TemplateError{Message: fmt.Sprintf("closing tag {/%s} does not match section %q", t.name, top.tag.name)}
			}
			closing := t
			top.closing = &closing
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 1 {
		return nil, &TemplateError{Message: fmt.Sprintf("unclosed section %q", stack[len(stack)-1].tag.name)}
	}
	return root.children, nil
}

// tagsWithin keeps only the markup of s, dropping its character data, so a
// removed range never unbalances the surrounding XML.
func tagsWithin(s string) string {
	var b strings.Builder
	inTag := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '<' {
			inTag = true
		}
		if inTag {
			b.WriteByte(c)
		}
		if c == '>' && inTag {
			inTag = false
		}
	}
	return b.String()
}

func excerpt(text []byte, at int) string {
	end := min(at+24, len(text))
	return string(text[at:end])
}
