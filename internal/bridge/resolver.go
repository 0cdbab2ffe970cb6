package bridge

import (
	"context"
	"fmt"
	"log/slog"

	client "github.com/hanpama/livebridge/internal/client"
	document "github.com/hanpama/livebridge/internal/document"
	executor "github.com/hanpama/livebridge/internal/executor"
	form "github.com/hanpama/livebridge/internal/form"
	reshape "github.com/hanpama/livebridge/internal/reshape"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// resolver binds the values of one payload's query to editable forms. It
// reads the remote result, which was produced by the same query expanded
// for the remote schema, and replaces every content document with the
// reshaped values of its form.
type resolver struct {
	session *Session
	schema  *schema.Schema
	payload string
}

var _ executor.Runtime = (*resolver)(nil)

func (r *resolver) ResolveSync(ctx context.Context, task executor.ResolveTask) (any, error) {
	return r.resolve(ctx, task)
}

func (r *resolver) BatchResolveAsync(ctx context.Context, tasks []executor.ResolveTask) []executor.ResolveResult {
	results := make([]executor.ResolveResult, len(tasks))
	for i, task := range tasks {
		v, err := r.resolve(ctx, task)
		results[i] = executor.ResolveResult{Value: v, Error: err}
	}
	return results
}

func (r *resolver) resolve(ctx context.Context, task executor.ResolveTask) (any, error) {
	source, _ := task.Source.(map[string]any)
	switch task.Field {
	case schema.SysField:
		return source[document.InternalSysKey], nil
	case schema.ValuesField:
		return source[document.InternalValuesKey], nil
	}
	value := lookup(source, task)
	if task.Field == schema.MetadataField {
		if truthy(value) {
			return value, nil
		}
		return reshape.DefaultMetadata(), nil
	}
	if r.schema.IsNodeRef(task.ReturnType) {
		return r.resolveNodes(ctx, task.ReturnType, value)
	}
	return value, nil
}

// lookup reads the field from source, falling back to the first alias
// holding a truthy value.
func lookup(source map[string]any, task executor.ResolveTask) any {
	value := source[task.Field]
	if truthy(value) {
		return value
	}
	for _, alias := range task.Aliases {
		if v := source[alias]; truthy(v) {
			return v
		}
	}
	return value
}

// truthy treats nil, false, zero numbers and the empty string as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return true
}

func (r *resolver) resolveNodes(ctx context.Context, t *schema.TypeRef, value any) (any, error) {
	if t.IsNonNull() {
		return r.resolveNodes(ctx, t.Unwrap(), value)
	}
	if !t.IsList() {
		return r.resolveDocument(ctx, value)
	}
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := r.resolveNodes(ctx, t.Unwrap(), item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *resolver) resolveDocument(ctx context.Context, value any) (any, error) {
	s := r.session
	var (
		doc *document.Document
		err error
	)
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		doc, err = client.GetDocument(ctx, s.api, v)
	default:
		doc, err = document.FromPayload(v)
	}
	if err != nil {
		return nil, err
	}

	collection, err := s.content.CollectionForPath(doc.Path())
	if err != nil {
		return nil, err
	}
	template, err := collection.TemplateForData(doc.Values)
	if err != nil {
		return nil, err
	}

	f := s.forms.Find(doc.Path())
	if f != nil {
		f.AddQuery(r.payload)
	} else {
		cfg := form.Config{
			ID:            doc.Path(),
			Label:         collection.DisplayLabel(),
			InitialValues: doc.Values,
			Fields:        form.ResolveFields(template),
			OnSubmit:      s.submitter(collection, doc),
			Queries:       []string{r.payload},
		}
		f = s.register(form.Formify(s.opts.Formify, cfg))
	}
	return reshape.Document(doc, template, f)
}

// register adds a freshly built form to the registry. Surfaced forms are
// watched so edits rerun every payload.
func (s *Session) register(f *form.Form, visible bool) *form.Form {
	if existing := s.forms.Find(f.ID()); existing != nil {
		for _, q := range f.Queries() {
			existing.AddQuery(q)
		}
		return existing
	}
	if !visible {
		s.logger.Debug("form hidden", slog.String("form", f.ID()))
		return s.forms.AddHidden(f)
	}
	f = s.forms.Add(f)
	f.Subscribe(func(*form.Form) { s.kick() })
	s.logger.Debug("form registered", slog.String("form", f.ID()), slog.Bool("global", f.Global()))
	return f
}

func (r *resolver) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok && name != "" {
			return name, nil
		}
	}
	if t := r.schema.Types[abstractType]; t != nil && len(t.PossibleTypes) == 1 {
		return t.PossibleTypes[0], nil
	}
	return "", fmt.Errorf("bridge: cannot determine concrete type of %s", abstractType)
}

func (r *resolver) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	return value, nil
}
