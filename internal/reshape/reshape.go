// Package reshape rebuilds a resolved document in the shape its GraphQL
// type expects, using the live form values, and annotates every object with
// the form paths of its fields.
package reshape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	content "github.com/hanpama/livebridge/internal/content"
	document "github.com/hanpama/livebridge/internal/document"
	form "github.com/hanpama/livebridge/internal/form"
)

// MetadataKey is the reserved key carrying edit-path metadata.
const MetadataKey = "_metadata"

// ErrTemplateReference is returned for polymorphic items whose template is
// only referenced by name.
var ErrTemplateReference = errors.New("reshape: polymorphic templates referenced by name are unsupported")

// Metadata locates the fields of one object in its form.
type Metadata struct {
	ID     any               `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Map returns m in the generic form the executor serializes.
func (m Metadata) Map() map[string]any {
	fields := make(map[string]any, len(m.Fields))
	for k, v := range m.Fields {
		fields[k] = v
	}
	return map[string]any{"id": m.ID, "fields": fields}
}

// DefaultMetadata is served for objects that were not reshaped.
func DefaultMetadata() map[string]any {
	return map[string]any{"id": nil, "fields": []any{}}
}

// Document reshapes the current values of f, the form bound to doc.
func Document(doc *document.Document, template *content.Template, f *form.Form) (map[string]any, error) {
	id := doc.Path()
	values := f.Values()
	out, err := formValues(f.Fields(), values, nil, id)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(out))
	for key := range out {
		fields[key] = JoinPath(nil, key)
	}
	out["id"] = id
	out["sys"] = doc.RawSys()
	out["values"] = values
	out[MetadataKey] = Metadata{ID: id, Fields: fields}.Map()
	out[document.InternalSysKey] = doc.RawSys()
	out[document.InternalValuesKey] = doc.Values
	out["__typename"] = TypeName(template.Namespace)
	return out, nil
}

// JoinPath joins path and name with dots, as in "blocks.0.title".
func JoinPath(path []any, name string) string {
	parts := make([]string, 0, len(path)+1)
	for _, p := range path {
		switch v := p.(type) {
		case int:
			parts = append(parts, strconv.Itoa(v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(append(parts, name), ".")
}

// TypeName returns the GraphQL type name of a namespace: every segment
// capitalised and concatenated.
func TypeName(namespace []string) string {
	var b strings.Builder
	for _, seg := range namespace {
		r, size := utf8.DecodeRuneInString(seg)
		if size == 0 {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(seg[size:])
	}
	return b.String()
}

func formValues(fields []form.Field, values map[string]any, path []any, id string) (map[string]any, error) {
	out := make(map[string]any)
	for i := range fields {
		field := &fields[i]
		v, ok := values[field.Name]
		if !ok || v == nil {
			continue
		}
		resolved, keep, err := fieldValue(field, v, path, id)
		if err != nil {
			return nil, err
		}
		if keep {
			out[field.Name] = resolved
		}
	}
	return out, nil
}

// fieldValue reshapes one non-null value. keep is false when the value
// produces no key.
func fieldValue(field *form.Field, v any, path []any, id string) (any, bool, error) {
	if field.Type != content.TypeObject {
		return v, true, nil
	}
	if len(field.Templates) > 0 && field.List {
		if items, ok := v.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				node, err := templateItem(field, asMap(item), extendPath(path, field.Name, i), id)
				if err != nil {
					return nil, false, err
				}
				out[i] = node
			}
			return out, true, nil
		}
	}
	if len(field.Fields) == 0 {
		return nil, false, fmt.Errorf("reshape: expected to find sub-fields on field %s", field.Name)
	}
	if !field.List {
		next := extendPath(path, field.Name)
		node, err := object(field.Fields, field.Namespace, asMap(v), next, path, id)
		return node, err == nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		next := extendPath(path, field.Name, i)
		node, err := object(field.Fields, field.Namespace, asMap(item), next, path, id)
		if err != nil {
			return nil, false, err
		}
		out[i] = node
	}
	return out, true, nil
}

func templateItem(field *form.Field, item map[string]any, path []any, id string) (map[string]any, error) {
	name, _ := item[content.TemplateKey].(string)
	t := field.Template(name)
	if t == nil {
		return nil, fmt.Errorf("reshape: unknown template %q on field %s", name, field.Name)
	}
	if t.IsRef() {
		return nil, fmt.Errorf("%w: %s on field %s", ErrTemplateReference, t.Ref, field.Name)
	}
	return object(t.Fields, t.Namespace, item, path, path, id)
}

// object reshapes one nested object. Metadata paths are built from meta and
// the object's own fields recurse with path.
func object(fields []form.Field, namespace []string, values map[string]any, meta, path []any, id string) (map[string]any, error) {
	metaFields := make(map[string]string, len(fields))
	for _, f := range fields {
		metaFields[f.Name] = JoinPath(meta, f.Name)
	}
	out, err := formValues(fields, values, path, id)
	if err != nil {
		return nil, err
	}
	out["__typename"] = TypeName(namespace)
	out[MetadataKey] = Metadata{ID: id, Fields: metaFields}.Map()
	return out, nil
}

func extendPath(path []any, segs ...any) []any {
	out := make([]any, 0, len(path)+len(segs))
	return append(append(out, path...), segs...)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
