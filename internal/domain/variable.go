package domain

import (
	json "github.com/goccy/go-json"
)

// Variable declares how one named value is computed for an event.
//
// The wire format is polymorphic over Type: URL variables carry a string
// "selection", EVENT variables carry an element selection object under the
// same field, ELEMENT variables use "option", and COOKIE/JAVASCRIPT carry
// flat fields. The ambiguous fields stay raw and are decoded through the
// typed accessors, which tolerate any shape.
type Variable struct {
	Type        VariableType    `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Properties  map[string]any  `json:"properties"`
	Selection   json.RawMessage `json:"selection"`
	Option      json.RawMessage `json:"option"`

	CookieName      string `json:"cookieName"`
	DecodeURLCookie bool   `json:"decodeUrlCookie"`
	Code            string `json:"code"`
}

// ElementOption selects a document element and optionally one attribute.
type ElementOption struct {
	CSSSelector string `json:"cssSelector"`
	Attribute   string `json:"attribute"`
}

// URLSelection returns the URL part selector ("full", "host", "port", "path",
// "query", "fragment", "protocol"). Ill-typed selections yield "".
func (v Variable) URLSelection() string {
	var sel string
	decodeLenient(v.Selection, &sel)
	return sel
}

// ElementSelection returns the element selection carried by EVENT variables.
func (v Variable) ElementSelection() ElementOption {
	var opt ElementOption
	decodeLenient(v.Selection, &opt)
	return opt
}

// ElementOption returns the element option carried by ELEMENT variables.
func (v Variable) ElementOption() ElementOption {
	var opt ElementOption
	decodeLenient(v.Option, &opt)
	return opt
}
