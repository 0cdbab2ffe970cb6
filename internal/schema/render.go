package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render produces SDL from the Schema. Types and directives are emitted in
// name order; builtin scalars and directives are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatSchemaDocument(ToAST(s))
	return buf.String()
}

// ToAST converts s into a gqlparser schema document.
func ToAST(s *Schema) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}

	if def := schemaDefinition(s); def != nil {
		doc.Schema = append(doc.Schema, def)
	}

	names := make([]string, 0, len(s.Types))
	for name, t := range s.Types {
		if isBuiltin(t) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Definitions = append(doc.Definitions, definitionToAST(s.Types[name]))
	}

	dirNames := make([]string, 0, len(s.Directives))
	for name, d := range s.Directives {
		if d == includeDirective || d == skipDirective {
			continue
		}
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		d := s.Directives[name]
		out := &ast.DirectiveDefinition{
			Description:  d.Description,
			Name:         d.Name,
			IsRepeatable: d.IsRepeatable,
		}
		for _, arg := range d.Arguments {
			out.Arguments = append(out.Arguments, argumentToAST(arg))
		}
		for _, loc := range d.Locations {
			out.Locations = append(out.Locations, ast.DirectiveLocation(loc))
		}
		doc.Directives = append(doc.Directives, out)
	}
	return doc
}

// schemaDefinition returns an explicit schema block only when the root type
// names differ from the conventional ones.
func schemaDefinition(s *Schema) *ast.SchemaDefinition {
	if (s.QueryType == "" || s.QueryType == "Query") &&
		(s.MutationType == "" || s.MutationType == "Mutation") &&
		(s.SubscriptionType == "" || s.SubscriptionType == "Subscription") {
		return nil
	}
	def := &ast.SchemaDefinition{}
	add := func(op ast.Operation, name string) {
		if name != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: op, Type: name})
		}
	}
	add(ast.Query, s.QueryType)
	add(ast.Mutation, s.MutationType)
	add(ast.Subscription, s.SubscriptionType)
	return def
}

func definitionToAST(t *Type) *ast.Definition {
	def := &ast.Definition{Name: t.Name, Description: t.Description}
	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
	case TypeKindObject, TypeKindInterface:
		def.Kind = ast.Object
		if t.Kind == TypeKindInterface {
			def.Kind = ast.Interface
		}
		def.Interfaces = append(def.Interfaces, t.Interfaces...)
		for _, f := range t.Fields {
			fd := &ast.FieldDefinition{
				Description: f.Description,
				Name:        f.Name,
				Type:        RefToAST(f.Type),
			}
			for _, arg := range f.Arguments {
				fd.Arguments = append(fd.Arguments, argumentToAST(arg))
			}
			if f.IsDeprecated {
				fd.Directives = append(fd.Directives, deprecatedDirective(f.DeprecationReason))
			}
			def.Fields = append(def.Fields, fd)
		}
	case TypeKindUnion:
		def.Kind = ast.Union
		def.Types = append(def.Types, t.PossibleTypes...)
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range t.EnumValues {
			ev := &ast.EnumValueDefinition{Description: v.Description, Name: v.Name}
			if v.IsDeprecated {
				ev.Directives = append(ev.Directives, deprecatedDirective(v.DeprecationReason))
			}
			def.EnumValues = append(def.EnumValues, ev)
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = append(def.Directives, &ast.Directive{Name: "oneOf"})
		}
		for _, in := range t.InputFields {
			arg := argumentToAST(in)
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Description:  arg.Description,
				Name:         arg.Name,
				Type:         arg.Type,
				DefaultValue: arg.DefaultValue,
				Directives:   arg.Directives,
			})
		}
	}
	return def
}

func argumentToAST(v *InputValue) *ast.ArgumentDefinition {
	arg := &ast.ArgumentDefinition{
		Description: v.Description,
		Name:        v.Name,
		Type:        RefToAST(v.Type),
	}
	if v.DefaultValue != nil {
		arg.DefaultValue = ValueToAST(v.DefaultValue)
	}
	if v.IsDeprecated {
		arg.Directives = append(arg.Directives, deprecatedDirective(v.DeprecationReason))
	}
	return arg
}

func deprecatedDirective(reason string) *ast.Directive {
	if reason == "" {
		return &ast.Directive{Name: "deprecated"}
	}
	return stringDirective("deprecated", "reason", reason)
}

func stringDirective(name, arg, value string) *ast.Directive {
	return &ast.Directive{
		Name: name,
		Arguments: ast.ArgumentList{
			{Name: arg, Value: &ast.Value{Kind: ast.StringValue, Raw: value}},
		},
	}
}

// RefToAST converts a TypeRef into a gqlparser type expression.
func RefToAST(t *TypeRef) *ast.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeRefNonNull:
		inner := RefToAST(t.OfType)
		if inner == nil {
			return nil
		}
		inner.NonNull = true
		return inner
	case TypeRefList:
		return ast.ListType(RefToAST(t.OfType), nil)
	default:
		return ast.NamedType(t.Named, nil)
	}
}

// ValueToAST converts a Go default value into a GraphQL literal.
func ValueToAST(v any) *ast.Value {
	switch x := v.(type) {
	case nil:
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	case string:
		return &ast.Value{Kind: ast.StringValue, Raw: x}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(x)}
	case int:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.Itoa(x)}
	case int32:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.FormatInt(int64(x), 10)}
	case int64:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.FormatInt(x, 10)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(x, 'g', -1, 64)}
	case []any:
		out := &ast.Value{Kind: ast.ListValue}
		for _, item := range x {
			out.Children = append(out.Children, &ast.ChildValue{Value: ValueToAST(item)})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range keys {
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: ValueToAST(x[k])})
		}
		return out
	default:
		return &ast.Value{Kind: ast.StringValue, Raw: fmt.Sprint(x)}
	}
}
