// Package document holds the identity of a content document: its system
// info and raw values, validated before they reach the form layer.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Keys under which an expanded query carries a document's identity.
const (
	InternalSysKey    = "_internalSys"
	InternalValuesKey = "_internalValues"
)

// ErrMalformed reports a document payload that does not match the identity
// schema.
var ErrMalformed = errors.New("document: malformed document payload")

// Collection is the collection summary embedded in SystemInfo.
type Collection struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

// SystemInfo is the `_sys` object of a content document.
type SystemInfo struct {
	Breadcrumbs  []string   `json:"breadcrumbs"`
	Basename     string     `json:"basename"`
	Filename     string     `json:"filename"`
	Path         string     `json:"path"`
	Extension    string     `json:"extension"`
	RelativePath string     `json:"relativePath"`
	Title        *string    `json:"title,omitempty"`
	Template     string     `json:"template"`
	Collection   Collection `json:"collection"`
}

// Document is an immutable snapshot of one content document.
type Document struct {
	Sys    SystemInfo
	Values map[string]any

	raw map[string]any
}

// RawSys returns the system info exactly as it was received, including keys
// the typed view does not model.
func (d *Document) RawSys() map[string]any { return d.raw }

// Path returns the document path, the document's identity.
func (d *Document) Path() string { return d.Sys.Path }

const identitySchema = `{
  "type": "object",
  "required": ["_internalSys", "_internalValues"],
  "properties": {
    "_internalValues": {"type": "object"},
    "_internalSys": {
      "type": "object",
      "required": ["breadcrumbs", "basename", "filename", "path", "extension", "relativePath", "template", "collection"],
      "properties": {
        "breadcrumbs": {"type": "array", "items": {"type": "string"}},
        "basename": {"type": "string"},
        "filename": {"type": "string"},
        "path": {"type": "string"},
        "extension": {"type": "string"},
        "relativePath": {"type": "string"},
        "title": {"type": ["string", "null"]},
        "template": {"type": "string"},
        "collection": {
          "type": "object",
          "required": ["name", "slug", "label", "path", "format"],
          "properties": {
            "name": {"type": "string"},
            "slug": {"type": "string"},
            "label": {"type": "string"},
            "path": {"type": "string"},
            "format": {"type": "string"}
          }
        }
      }
    }
  }
}`

var identity = mustCompile(identitySchema)

func mustCompile(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("document: invalid identity schema: %v", err))
	}
	return s
}

// FromPayload validates an inline value carrying `_internalSys` and
// `_internalValues` and returns the document it describes.
func FromPayload(v any) (*Document, error) {
	result, err := identity.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}

	// The validated value may be any JSON-compatible Go value; a JSON round
	// trip gives both the typed view and plain maps.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var wire struct {
		Sys    json.RawMessage `json:"_internalSys"`
		Values map[string]any  `json:"_internalValues"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	doc := &Document{Values: wire.Values}
	if err := json.Unmarshal(wire.Sys, &doc.Sys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(wire.Sys, &doc.raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// FromNode builds a document from a remote `node` lookup that selected
// `_sys` and `_values`.
func FromNode(node map[string]any) (*Document, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: empty node", ErrMalformed)
	}
	return FromPayload(map[string]any{
		InternalSysKey:    node["_sys"],
		InternalValuesKey: node["_values"],
	})
}
