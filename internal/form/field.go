package form

import (
	content "github.com/hanpama/livebridge/internal/content"
)

// Field describes one editable field of a form.
type Field struct {
	Name      string         `json:"name"`
	Label     string         `json:"label,omitempty"`
	Type      string         `json:"type"`
	Component string         `json:"component"`
	List      bool           `json:"list,omitempty"`
	Required  bool           `json:"required,omitempty"`
	Fields    []Field        `json:"fields,omitempty"`
	Templates []Template     `json:"templates,omitempty"`
	UI        map[string]any `json:"ui,omitempty"`

	// Namespace locates the field in the content schema; it names the
	// GraphQL type of object values.
	Namespace []string `json:"-"`
}

// Template is one allowed shape of a polymorphic object field.
type Template struct {
	Name   string  `json:"name"`
	Label  string  `json:"label,omitempty"`
	Ref    string  `json:"ref,omitempty"`
	Fields []Field `json:"fields,omitempty"`

	Namespace []string `json:"-"`
}

// IsRef reports whether t names a template defined elsewhere instead of
// carrying its fields.
func (t *Template) IsRef() bool { return t.Ref != "" && len(t.Fields) == 0 }

// Template returns the template of f named name, or nil.
func (f *Field) Template(name string) *Template {
	for i := range f.Templates {
		t := &f.Templates[i]
		if t.Name == name || (t.Name == "" && t.Ref == name) {
			return t
		}
	}
	return nil
}

// Components used by the editor for each field type.
const (
	ComponentText      = "text"
	ComponentList      = "list"
	ComponentNumber    = "number"
	ComponentToggle    = "toggle"
	ComponentDate      = "date"
	ComponentImage     = "image"
	ComponentReference = "reference"
	ComponentRichText  = "rich-text"
	ComponentGroup     = "group"
	ComponentGroupList = "group-list"
	ComponentBlocks    = "blocks"
)

// ResolveField turns a content field into an editable field descriptor. A
// `component` key in the field's ui settings overrides the default.
func ResolveField(f *content.Field) Field {
	out := Field{
		Name:      f.Name,
		Label:     f.Label,
		Type:      f.Type,
		List:      f.List,
		Required:  f.Required,
		UI:        f.UI,
		Namespace: f.Namespace,
	}
	if out.Label == "" {
		out.Label = f.Name
	}
	for _, sub := range f.Fields {
		out.Fields = append(out.Fields, ResolveField(sub))
	}
	for _, t := range f.Templates {
		out.Templates = append(out.Templates, ResolveTemplate(t))
	}
	out.Component = component(out)
	if c, ok := f.UI["component"].(string); ok && c != "" {
		out.Component = c
	}
	return out
}

// ResolveTemplate turns a content template into its form counterpart.
func ResolveTemplate(t *content.Template) Template {
	out := Template{Name: t.Name, Label: t.Label, Ref: t.Ref, Namespace: t.Namespace}
	if out.Label == "" {
		out.Label = t.Name
	}
	for _, f := range t.Fields {
		out.Fields = append(out.Fields, ResolveField(f))
	}
	return out
}

// ResolveFields resolves every field of a template, in order.
func ResolveFields(t *content.Template) []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, ResolveField(f))
	}
	return out
}

func component(f Field) string {
	switch f.Type {
	case content.TypeObject:
		switch {
		case len(f.Templates) > 0:
			return ComponentBlocks
		case f.List:
			return ComponentGroupList
		default:
			return ComponentGroup
		}
	case "number":
		return ComponentNumber
	case "boolean":
		return ComponentToggle
	case "datetime":
		return ComponentDate
	case "image":
		return ComponentImage
	case content.TypeReference:
		return ComponentReference
	case "rich-text":
		return ComponentRichText
	}
	if f.List {
		return ComponentList
	}
	return ComponentText
}
