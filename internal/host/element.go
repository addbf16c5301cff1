package host

import "strings"

// Element is a detached snapshot of a document node. It carries enough
// structure for selector lookups and attribute/text extraction; live DOM
// semantics stay on the host side of the boundary.
type Element struct {
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Children   []*Element        `json:"children,omitempty"`
}

// Attribute returns the named attribute value, or "".
func (e *Element) Attribute(name string) string {
	if e == nil {
		return ""
	}
	return e.Attributes[name]
}

// HasAttribute reports whether the attribute is present, even when empty.
func (e *Element) HasAttribute(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Attributes[name]
	return ok
}

// TextContent returns the element's own text followed by its descendants'.
func (e *Element) TextContent() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	e.appendText(&b)
	return b.String()
}

func (e *Element) appendText(b *strings.Builder) {
	b.WriteString(e.Text)
	for _, c := range e.Children {
		c.appendText(b)
	}
}

// Clone deep-copies the element subtree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	dup := &Element{Tag: e.Tag, Text: e.Text}
	if e.Attributes != nil {
		dup.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			dup.Attributes[k] = v
		}
	}
	for _, c := range e.Children {
		dup.Children = append(dup.Children, c.Clone())
	}
	return dup
}

// Find returns the first element in the subtree (self included, depth-first)
// matching the selector, or nil. Selectors cover the simple forms tracker
// configurations use: "tag", "#id", ".class", "[attr]", "[attr=value]", and
// space-separated descendant chains of those.
func (e *Element) Find(selector string) *Element {
	parts := strings.Fields(selector)
	if len(parts) == 0 || e == nil {
		return nil
	}
	return e.find(parts)
}

func (e *Element) find(parts []string) *Element {
	if matchesSimple(e, parts[0]) {
		if len(parts) == 1 {
			return e
		}
		for _, c := range e.Children {
			if found := c.find(parts[1:]); found != nil {
				return found
			}
		}
	}
	for _, c := range e.Children {
		if found := c.find(parts); found != nil {
			return found
		}
	}
	return nil
}

func matchesSimple(e *Element, sel string) bool {
	if e == nil || sel == "" {
		return false
	}
	switch {
	case strings.HasPrefix(sel, "#"):
		return e.Attribute("id") == sel[1:]
	case strings.HasPrefix(sel, "."):
		for _, c := range strings.Fields(e.Attribute("class")) {
			if c == sel[1:] {
				return true
			}
		}
		return false
	case strings.HasPrefix(sel, "[") && strings.HasSuffix(sel, "]"):
		body := sel[1 : len(sel)-1]
		if name, value, ok := strings.Cut(body, "="); ok {
			return e.Attribute(name) == strings.Trim(value, `"'`)
		}
		return e.HasAttribute(body)
	case sel == "*":
		return true
	default:
		return strings.EqualFold(e.Tag, sel)
	}
}
