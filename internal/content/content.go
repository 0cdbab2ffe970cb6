// Package content describes the editable content model: collections, their
// templates and fields. It answers which collection owns a document path,
// which template a document uses, and how edited values are shaped for the
// update mutation.
package content

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateKey is the value key naming the template of a polymorphic object.
const TemplateKey = "_template"

var (
	// ErrNoCollection is returned when no collection claims a document path.
	ErrNoCollection = errors.New("content: no collection")
	// ErrNoTemplate is returned when a document's template cannot be determined.
	ErrNoTemplate = errors.New("content: no template")
)

// Schema is the set of collections of a site.
type Schema struct {
	Collections []*Collection `yaml:"collections"`
}

// Collection groups documents stored under one path.
type Collection struct {
	Name      string      `yaml:"name"`
	Label     string      `yaml:"label,omitempty"`
	Path      string      `yaml:"path"`
	Format    string      `yaml:"format,omitempty"`
	Match     *Match      `yaml:"match,omitempty"`
	Fields    []*Field    `yaml:"fields,omitempty"`
	Templates []*Template `yaml:"templates,omitempty"`
}

// Match narrows a collection to files matching Include and not Exclude.
// Patterns are relative to the collection path, without extension.
type Match struct {
	Include string `yaml:"include,omitempty"`
	Exclude string `yaml:"exclude,omitempty"`
}

// Template is a named set of fields. A template given only by Ref refers to
// a template defined elsewhere and carries no fields of its own.
type Template struct {
	Name   string   `yaml:"name,omitempty"`
	Label  string   `yaml:"label,omitempty"`
	Ref    string   `yaml:"ref,omitempty"`
	Fields []*Field `yaml:"fields,omitempty"`

	Namespace []string `yaml:"-"`
}

// Field is one field of a template.
type Field struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	Label     string         `yaml:"label,omitempty"`
	List      bool           `yaml:"list,omitempty"`
	Required  bool           `yaml:"required,omitempty"`
	Fields    []*Field       `yaml:"fields,omitempty"`
	Templates []*Template    `yaml:"templates,omitempty"`
	UI        map[string]any `yaml:"ui,omitempty"`

	Namespace []string `yaml:"-"`
}

// Field types with structural meaning.
const (
	TypeObject    = "object"
	TypeReference = "reference"
)

// IsRef reports whether t only names a template.
func (t *Template) IsRef() bool { return t.Ref != "" && len(t.Fields) == 0 }

// Template returns the object template named name, or nil.
func (f *Field) Template(name string) *Template {
	for _, t := range f.Templates {
		if t.Name == name || (t.Name == "" && t.Ref == name) {
			return t
		}
	}
	return nil
}

// Load reads a YAML content schema from r.
func Load(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("content: decode schema: %w", err)
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a YAML content schema from a file.
func LoadFile(name string) (*Schema, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// prepare validates the schema and assigns namespaces.
func (s *Schema) prepare() error {
	seen := make(map[string]bool)
	for _, c := range s.Collections {
		if c.Name == "" {
			return errors.New("content: collection without name")
		}
		if seen[c.Name] {
			return fmt.Errorf("content: duplicate collection %q", c.Name)
		}
		seen[c.Name] = true
		if (len(c.Fields) == 0) == (len(c.Templates) == 0) {
			return fmt.Errorf("content: collection %q needs exactly one of fields or templates", c.Name)
		}
		ns := []string{c.Name}
		for _, f := range c.Fields {
			if err := prepareField(f, ns); err != nil {
				return fmt.Errorf("content: collection %q: %w", c.Name, err)
			}
		}
		for _, t := range c.Templates {
			if t.IsRef() {
				return fmt.Errorf("content: collection %q: template reference %q is not allowed on collections", c.Name, t.Ref)
			}
			if err := prepareTemplate(t, ns); err != nil {
				return fmt.Errorf("content: collection %q: %w", c.Name, err)
			}
		}
	}
	return nil
}

func prepareField(f *Field, parent []string) error {
	if f.Name == "" {
		return errors.New("field without name")
	}
	f.Namespace = extend(parent, f.Name)
	for _, sub := range f.Fields {
		if err := prepareField(sub, f.Namespace); err != nil {
			return err
		}
	}
	for _, t := range f.Templates {
		if t.IsRef() {
			continue
		}
		if err := prepareTemplate(t, f.Namespace); err != nil {
			return err
		}
	}
	return nil
}

func prepareTemplate(t *Template, parent []string) error {
	if t.Name == "" {
		return errors.New("template without name")
	}
	t.Namespace = extend(parent, t.Name)
	for _, f := range t.Fields {
		if err := prepareField(f, t.Namespace); err != nil {
			return err
		}
	}
	return nil
}

func extend(ns []string, name string) []string {
	out := make([]string, 0, len(ns)+1)
	return append(append(out, ns...), name)
}

// Collection returns the collection named name, or nil.
func (s *Schema) Collection(name string) *Collection {
	for _, c := range s.Collections {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CollectionForPath returns the collection owning the document at the
// repository-relative path p. When several collections claim p the one with
// the longest path wins.
func (s *Schema) CollectionForPath(p string) (*Collection, error) {
	p = normalize(p)
	var best *Collection
	for _, c := range s.Collections {
		if !c.claims(p) {
			continue
		}
		if best == nil || len(normalize(c.Path)) > len(normalize(best.Path)) {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: unable to determine collection for path %s", ErrNoCollection, p)
	}
	return best, nil
}

func (c *Collection) claims(p string) bool {
	dir := normalize(c.Path)
	if dir != "" && !strings.HasPrefix(p, dir+"/") {
		return false
	}
	if c.Match == nil {
		return true
	}
	rel := strings.TrimPrefix(p, dir+"/")
	if dir == "" {
		rel = p
	}
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if c.Match.Include != "" {
		if ok, _ := path.Match(c.Match.Include, rel); !ok {
			return false
		}
	}
	if c.Match.Exclude != "" {
		if ok, _ := path.Match(c.Match.Exclude, rel); ok {
			return false
		}
	}
	return true
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p
}

// DisplayLabel returns the collection label, falling back to its name.
func (c *Collection) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// TemplateForData returns the template describing data in collection c. A
// collection with fields has one implicit template named after it; a
// collection with templates picks the one named by data's `_template` key.
func (c *Collection) TemplateForData(data map[string]any) (*Template, error) {
	if len(c.Fields) > 0 {
		return &Template{Name: c.Name, Label: c.Label, Fields: c.Fields, Namespace: []string{c.Name}}, nil
	}
	name, _ := data[TemplateKey].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: missing %s on data for collection %s", ErrNoTemplate, TemplateKey, c.Name)
	}
	for _, t := range c.Templates {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: template %q not found in collection %s", ErrNoTemplate, name, c.Name)
}

// TransformPayload shapes form values into the params of the update
// mutation: `{collection: values}`, or `{collection: {template: values}}`
// for collections with templates. Polymorphic object values become
// `{templateName: values}` with the `_template` key removed.
func (s *Schema) TransformPayload(collection string, values map[string]any) (map[string]any, error) {
	c := s.Collection(collection)
	if c == nil {
		return nil, fmt.Errorf("%w: unknown collection %s", ErrNoCollection, collection)
	}
	t, err := c.TemplateForData(values)
	if err != nil {
		return nil, err
	}
	shaped, err := transformFields(t.Fields, values)
	if err != nil {
		return nil, err
	}
	if len(c.Templates) > 0 {
		return map[string]any{c.Name: map[string]any{t.Name: shaped}}, nil
	}
	return map[string]any{c.Name: shaped}, nil
}

func transformFields(fields []*Field, values map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		shaped, err := transformValue(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = shaped
	}
	return out, nil
}

func transformValue(f *Field, v any) (any, error) {
	if f.Type != TypeObject || v == nil {
		return v, nil
	}
	if f.List {
		items, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			shaped, err := transformObject(f, item)
			if err != nil {
				return nil, err
			}
			out[i] = shaped
		}
		return out, nil
	}
	return transformObject(f, v)
}

func transformObject(f *Field, v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	if len(f.Templates) == 0 {
		return transformFields(f.Fields, m)
	}
	name, _ := m[TemplateKey].(string)
	t := f.Template(name)
	if t == nil {
		return nil, fmt.Errorf("%w: template %q not found on field %s", ErrNoTemplate, name, f.Name)
	}
	if t.IsRef() {
		return nil, fmt.Errorf("content: template %q on field %s is a reference", name, f.Name)
	}
	shaped, err := transformFields(t.Fields, m)
	if err != nil {
		return nil, err
	}
	return map[string]any{name: shaped}, nil
}
