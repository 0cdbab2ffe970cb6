// Package expand rewrites GraphQL queries so every selection on a content
// node also fetches the document identity the form layer needs.
package expand

import (
	"fmt"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// Response names of the injected selections.
const (
	SysAlias    = "_internalSys"
	ValuesAlias = "_internalValues"
	Typename    = "__typename"
)

// sysSelection is the system info selected under SysAlias.
const sysSelection = `{ breadcrumbs basename filename path extension relativePath title template collection { name slug label path format } }`

var sysFields = mustSelection(sysSelection)

func mustSelection(src string) language.SelectionSet {
	doc, err := language.ParseQuery(src)
	if err != nil {
		panic(fmt.Sprintf("expand: invalid system selection: %v", err))
	}
	return doc.Operations[0].SelectionSet
}

// Query parses source, expands it against sch and prints the result.
func Query(sch *schema.Schema, source string) (string, error) {
	doc, err := language.ParseQuery(source)
	if err != nil {
		return "", err
	}
	out, err := Expand(sch, doc)
	if err != nil {
		return "", err
	}
	return language.PrintQuery(out), nil
}

// Expand returns a copy of doc where every non-root selection set gains
// __typename, selections on content nodes gain the `_internalSys` and
// `_internalValues` identity fields, and selections on object types with a
// `_metadata` field gain it. Union and interface selections receive these
// inside one inline fragment per possible type.
//
// Expanding an expanded document is a no-op. doc is not modified.
func Expand(sch *schema.Schema, doc *language.QueryDocument) (*language.QueryDocument, error) {
	out := copyDocument(doc)
	e := &expander{sch: sch, fragments: make(map[string]*language.FragmentDefinition)}
	for _, frag := range out.Fragments {
		e.fragments[frag.Name] = frag
	}

	roots := make(map[string]bool)
	for _, op := range out.Operations {
		root, err := e.rootType(op.Operation)
		if err != nil {
			return nil, err
		}
		roots[root.Name] = true
		set, err := e.selectionSet(root, op.SelectionSet, true)
		if err != nil {
			return nil, err
		}
		op.SelectionSet = set
	}

	for _, frag := range out.Fragments {
		t := sch.Types[frag.TypeCondition]
		if t == nil {
			return nil, fmt.Errorf("expand: unknown type %q on fragment %q", frag.TypeCondition, frag.Name)
		}
		set, err := e.selectionSet(t, frag.SelectionSet, roots[t.Name])
		if err != nil {
			return nil, err
		}
		frag.SelectionSet = set
	}
	return out, nil
}

type expander struct {
	sch       *schema.Schema
	fragments map[string]*language.FragmentDefinition
}

func (e *expander) rootType(op language.Operation) (*schema.Type, error) {
	var t *schema.Type
	switch op {
	case language.Query:
		t = e.sch.GetQueryType()
	case language.Mutation:
		t = e.sch.GetMutationType()
	case language.Subscription:
		t = e.sch.GetSubscriptionType()
	}
	if t == nil {
		return nil, fmt.Errorf("expand: schema has no root type for %s", op)
	}
	return t, nil
}

// selectionSet injects into set for parent and then expands its children,
// injected fragments included.
func (e *expander) selectionSet(parent *schema.Type, set language.SelectionSet, root bool) (language.SelectionSet, error) {
	if !root {
		set = e.inject(parent, set)
	}
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if err := e.field(parent, sel); err != nil {
				return nil, err
			}
		case *language.InlineFragment:
			t := parent
			if sel.TypeCondition != "" {
				if t = e.sch.Types[sel.TypeCondition]; t == nil {
					return nil, fmt.Errorf("expand: unknown type %q", sel.TypeCondition)
				}
			}
			children, err := e.children(t, sel.SelectionSet)
			if err != nil {
				return nil, err
			}
			sel.SelectionSet = children
		case *language.FragmentSpread:
			if e.fragments[sel.Name] == nil {
				return nil, fmt.Errorf("expand: unknown fragment %q", sel.Name)
			}
		}
	}
	return set, nil
}

// children expands the selections of an inline fragment without injecting at
// the fragment's own level.
func (e *expander) children(parent *schema.Type, set language.SelectionSet) (language.SelectionSet, error) {
	return e.selectionSet(parent, set, true)
}

func (e *expander) field(parent *schema.Type, f *language.Field) error {
	if f.Name == Typename {
		return nil
	}
	if isInjected(f) {
		return nil
	}
	def := parent.Field(f.Name)
	if def == nil {
		return fmt.Errorf("expand: unknown field %q on type %q", f.Name, parent.Name)
	}
	if len(f.SelectionSet) == 0 {
		return nil
	}
	name := def.Type.Name()
	t := e.sch.Types[name]
	if t == nil {
		return fmt.Errorf("expand: unknown type %q", name)
	}
	set, err := e.selectionSet(t, f.SelectionSet, false)
	if err != nil {
		return err
	}
	f.SelectionSet = set
	return nil
}

// isInjected reports whether f is one of the identity selections. They are
// emitted in final form and never expanded further.
func isInjected(f *language.Field) bool {
	return (f.Alias == SysAlias && f.Name == schema.SysField) ||
		(f.Alias == ValuesAlias && f.Name == schema.ValuesField)
}

func (e *expander) inject(parent *schema.Type, set language.SelectionSet) language.SelectionSet {
	set = appendField(set, Typename, Typename, nil)
	switch parent.Kind {
	case schema.TypeKindObject:
		set = e.injectObject(parent, set)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		for _, name := range parent.PossibleTypes {
			member := e.sch.Types[name]
			if member == nil || !e.wantsInjection(member) {
				continue
			}
			frag := findFragment(set, name)
			if frag == nil {
				frag = &language.InlineFragment{TypeCondition: name}
				set = append(set, frag)
			}
			frag.SelectionSet = e.injectObject(member, frag.SelectionSet)
		}
	}
	return set
}

func (e *expander) wantsInjection(t *schema.Type) bool {
	return e.sch.IsNodeType(t.Name) || t.Field(schema.MetadataField) != nil
}

func (e *expander) injectObject(t *schema.Type, set language.SelectionSet) language.SelectionSet {
	if e.sch.IsNodeType(t.Name) {
		set = appendField(set, SysAlias, schema.SysField, sysFields)
		set = appendField(set, ValuesAlias, schema.ValuesField, nil)
	}
	if t.Field(schema.MetadataField) != nil {
		set = appendField(set, schema.MetadataField, schema.MetadataField, nil)
	}
	return set
}

// appendField adds `alias: name` unless set already has a field answering
// under alias.
func appendField(set language.SelectionSet, alias, name string, children language.SelectionSet) language.SelectionSet {
	for _, sel := range set {
		if f, ok := sel.(*language.Field); ok && responseName(f) == alias {
			return set
		}
	}
	return append(set, &language.Field{Alias: alias, Name: name, SelectionSet: copySelectionSet(children)})
}

func responseName(f *language.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func findFragment(set language.SelectionSet, typeCondition string) *language.InlineFragment {
	for _, sel := range set {
		if frag, ok := sel.(*language.InlineFragment); ok && frag.TypeCondition == typeCondition && len(frag.Directives) == 0 {
			return frag
		}
	}
	return nil
}
