package executor

import (
	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// fieldGroup is every field node selected under one response name.
type fieldGroup struct {
	name   string
	fields []*language.Field
}

// collect flattens the selection sets for an object of type t into field
// groups in document order, expanding fragments that apply to t and
// honoring @skip and @include.
func (ex *execution) collect(t *schema.Type, sets ...language.SelectionSet) []fieldGroup {
	c := &collector{ex: ex, t: t, index: make(map[string]int), visited: make(map[string]bool)}
	for _, set := range sets {
		c.walk(set)
	}
	return c.groups
}

type collector struct {
	ex      *execution
	t       *schema.Type
	groups  []fieldGroup
	index   map[string]int
	visited map[string]bool
}

func (c *collector) walk(set language.SelectionSet) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if !c.ex.included(sel.Directives) {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			if i, ok := c.index[name]; ok {
				c.groups[i].fields = append(c.groups[i].fields, sel)
				continue
			}
			c.index[name] = len(c.groups)
			c.groups = append(c.groups, fieldGroup{name: name, fields: []*language.Field{sel}})
		case *language.InlineFragment:
			if c.ex.included(sel.Directives) && c.ex.applies(c.t, sel.TypeCondition) {
				c.walk(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.ex.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.ex.fragments.ForName(sel.Name)
			if def == nil {
				def = sel.Definition
			}
			if def != nil && c.ex.applies(c.t, def.TypeCondition) {
				c.walk(def.SelectionSet)
			}
		}
	}
}

// applies reports whether a fragment on cond selects fields of t.
func (ex *execution) applies(t *schema.Type, cond string) bool {
	if cond == "" || cond == t.Name {
		return true
	}
	ct := ex.schema.Types[cond]
	if ct == nil {
		return false
	}
	switch ct.Kind {
	case schema.TypeKindInterface:
		return contains(t.Interfaces, cond) || contains(ct.PossibleTypes, t.Name)
	case schema.TypeKindUnion:
		return contains(ct.PossibleTypes, t.Name)
	}
	return false
}

func (ex *execution) included(dirs language.DirectiveList) bool {
	for _, d := range dirs {
		switch d.Name {
		case "skip":
			if ex.condition(d) {
				return false
			}
		case "include":
			if !ex.condition(d) {
				return false
			}
		}
	}
	return true
}

func (ex *execution) condition(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(ex.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
