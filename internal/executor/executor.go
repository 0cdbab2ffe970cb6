package executor

import (
	"context"
	"errors"
	"fmt"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// Executor runs operations against one schema. It holds no per-request
// state and is safe for concurrent use when its Runtime is.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func New(runtime Runtime, sch *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: sch}
}

// Execute runs the selected operation of req. Request errors (unknown
// operation, bad variables) come back with nil Data; field errors come back
// next to the partial Data.
func (e *Executor) Execute(ctx context.Context, req Request) *Result {
	op, err := selectOperation(req.Document, req.OperationName)
	if err != nil {
		return &Result{Errors: language.ErrorList{err}}
	}
	vars, errs := coerceVariables(e.schema, op, req.Variables)
	if len(errs) > 0 {
		return &Result{Errors: errs}
	}
	root := e.rootType(op.Operation)
	if root == nil {
		return &Result{Errors: language.ErrorList{{
			Message: fmt.Sprintf("schema does not support %s operations", op.Operation),
		}}}
	}

	ex := &execution{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		fragments: req.Document.Fragments,
		vars:      vars,
	}
	data := make(map[string]any)
	ex.selectionSet(nil, root, ex.collect(root, op.SelectionSet), req.RootValue, data)
	for len(ex.pending) > 0 {
		ex.flush()
	}
	return &Result{Data: data, Errors: ex.errors}
}

func (e *Executor) rootType(op language.Operation) *schema.Type {
	switch op {
	case language.Mutation:
		return e.schema.GetMutationType()
	case language.Subscription:
		return e.schema.GetSubscriptionType()
	default:
		return e.schema.GetQueryType()
	}
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, *language.Error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, &language.Error{Message: "document contains no operations"}
	}
	if name == "" {
		if len(doc.Operations) > 1 {
			return nil, &language.Error{Message: "operation name is required when the document contains multiple operations"}
		}
		return doc.Operations[0], nil
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, &language.Error{Message: fmt.Sprintf("unknown operation %q", name)}
	}
	return op, nil
}

// execution is the state of one Execute call.
type execution struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	fragments language.FragmentDefinitionList
	vars      map[string]any

	pending []pending
	errors  language.ErrorList
}

// pending is an async field waiting for the batch of its depth.
type pending struct {
	slot   *slot
	task   ResolveTask
	fields []*language.Field
}

// slot is one position of the response tree: a key of an object or an index
// of a list. parent is the slot holding the enclosing value; root fields have
// none.
type slot struct {
	parent *slot
	field  string // Type.field, for messages

	object map[string]any
	key    string
	list   []any
	index  int

	nullable bool
	dropped  bool
}

func (s *slot) set(v any) {
	if s.object != nil {
		s.object[s.key] = v
		return
	}
	s.list[s.index] = v
}

// live reports whether the value at s still reaches the response.
func (s *slot) live() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.dropped {
			return false
		}
	}
	return true
}

func (s *slot) path() language.Path {
	var p language.Path
	for cur := s; cur != nil; cur = cur.parent {
		if cur.object != nil {
			p = append(p, language.PathName(cur.key))
		} else {
			p = append(p, language.PathIndex(cur.index))
		}
	}
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// propagate nulls the nearest nullable slot at or above s. A root field
// absorbs the null when nothing below it is nullable.
func (ex *execution) propagate(s *slot) {
	cur := s
	for !cur.nullable && cur.parent != nil {
		cur = cur.parent
	}
	cur.set(nil)
	cur.dropped = true
}

func (ex *execution) errorAt(s *slot, f *language.Field, err error) {
	e := &language.Error{Err: err, Message: err.Error(), Path: s.path()}
	var located *language.Error
	if errors.As(err, &located) {
		e.Message = located.Message
	}
	if f != nil && f.Position != nil {
		e.Locations = []language.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}
	ex.errors = append(ex.errors, e)
}

// fail records err for the field at s and nulls it.
func (ex *execution) fail(s *slot, fields []*language.Field, err error) {
	ex.errorAt(s, fields[0], err)
	ex.propagate(s)
}

func (ex *execution) selectionSet(parent *slot, t *schema.Type, groups []fieldGroup, source any, out map[string]any) {
	for _, g := range groups {
		if parent != nil && !parent.live() {
			return
		}
		f := g.fields[0]
		if f.Name == "__typename" {
			out[g.name] = t.Name
			continue
		}
		s := &slot{parent: parent, field: t.Name + "." + f.Name, object: out, key: g.name}
		def := t.Field(f.Name)
		if def == nil {
			ex.errorAt(s, f, fmt.Errorf("Cannot query field %q on type %q.", f.Name, t.Name))
			continue
		}
		s.nullable = !def.Type.IsNonNull()

		args, err := ex.arguments(def, f)
		if err != nil {
			ex.fail(s, g.fields, err)
			continue
		}
		task := ResolveTask{
			ObjectType: t.Name,
			Field:      def.Name,
			ReturnType: def.Type,
			Aliases:    aliases(g.fields),
			Source:     source,
			Args:       args,
		}
		if def.Async {
			out[g.name] = nil
			ex.pending = append(ex.pending, pending{slot: s, task: task, fields: g.fields})
			continue
		}
		v, err := ex.runtime.ResolveSync(ex.ctx, task)
		if err != nil {
			ex.fail(s, g.fields, err)
			continue
		}
		ex.complete(s, def.Type, g.fields, v)
	}
}

// flush resolves the queued async fields of one depth in a single batch.
// Fields queued while completing the batch form the next depth.
func (ex *execution) flush() {
	var batch []pending
	for _, p := range ex.pending {
		if p.slot.live() {
			batch = append(batch, p)
		}
	}
	ex.pending = nil
	if len(batch) == 0 {
		return
	}
	if err := ex.ctx.Err(); err != nil {
		for _, p := range batch {
			if p.slot.live() {
				ex.fail(p.slot, p.fields, err)
			}
		}
		return
	}

	tasks := make([]ResolveTask, len(batch))
	for i, p := range batch {
		tasks[i] = p.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)
	if len(results) != len(batch) {
		err := fmt.Errorf("executor: batch returned %d results for %d tasks", len(results), len(batch))
		for _, p := range batch {
			if p.slot.live() {
				ex.fail(p.slot, p.fields, err)
			}
		}
		return
	}
	for i, p := range batch {
		// an earlier result of this batch may have nulled an ancestor
		if !p.slot.live() {
			continue
		}
		if r := results[i]; r.Error != nil {
			ex.fail(p.slot, p.fields, r.Error)
		} else {
			ex.complete(p.slot, p.task.ReturnType, p.fields, r.Value)
		}
	}
}

func (ex *execution) complete(s *slot, t *schema.TypeRef, fields []*language.Field, value any) {
	if t.IsNonNull() {
		if isNullish(value) {
			ex.fail(s, fields, fmt.Errorf("Cannot return null for non-nullable field %s.", s.field))
			return
		}
		ex.complete(s, t.OfType, fields, value)
		return
	}
	if isNullish(value) {
		s.set(nil)
		return
	}

	if t.Kind == schema.TypeRefList {
		items, ok := asList(value)
		if !ok {
			ex.fail(s, fields, fmt.Errorf("expected a list for field %s, got %T", s.field, value))
			return
		}
		out := make([]any, len(items))
		s.set(out)
		for i, item := range items {
			if !s.live() {
				return
			}
			elem := &slot{parent: s, field: s.field, list: out, index: i, nullable: !t.OfType.IsNonNull()}
			ex.complete(elem, t.OfType, fields, item)
		}
		return
	}

	named := ex.schema.Types[t.Named]
	if named == nil {
		ex.fail(s, fields, fmt.Errorf("unknown type %q", t.Named))
		return
	}
	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := ex.runtime.SerializeLeafValue(ex.ctx, named.Name, value)
		if err != nil {
			ex.fail(s, fields, err)
			return
		}
		s.set(v)
	case schema.TypeKindObject:
		ex.completeObject(s, named, fields, value)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		name, err := ex.runtime.ResolveType(ex.ctx, named.Name, value)
		if err != nil {
			ex.fail(s, fields, err)
			return
		}
		obj := ex.schema.Types[name]
		if obj == nil || obj.Kind != schema.TypeKindObject {
			ex.fail(s, fields, fmt.Errorf("abstract type %s must resolve to an object type, got %q", named.Name, name))
			return
		}
		ex.completeObject(s, obj, fields, value)
	default:
		ex.fail(s, fields, fmt.Errorf("type %s cannot be used as an output type", named.Name))
	}
}

func (ex *execution) completeObject(s *slot, t *schema.Type, fields []*language.Field, value any) {
	sets := make([]language.SelectionSet, len(fields))
	for i, f := range fields {
		sets[i] = f.SelectionSet
	}
	out := make(map[string]any)
	s.set(out)
	ex.selectionSet(s, t, ex.collect(t, sets...), value, out)
}

// aliases lists the explicit aliases among merged field nodes.
func aliases(fields []*language.Field) []string {
	var out []string
	for _, f := range fields {
		if f.Alias != "" && f.Alias != f.Name {
			out = append(out, f.Alias)
		}
	}
	return out
}
