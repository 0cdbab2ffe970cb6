// Package schema holds the executable view of a content API schema: named
// types with their fields, plus the content-node index the bridge uses to
// find documents in query results.
package schema

import "strings"

type Schema struct {
	Description      string
	QueryType        string
	MutationType     string
	SubscriptionType string

	Types      map[string]*Type
	Directives map[string]*Directive

	nodeTypes map[string]bool
}

// GetQueryType returns the query root, or nil.
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the mutation root, or nil.
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the subscription root, or nil.
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Which of the slices are used depends on Kind:
// objects and interfaces have Fields and Interfaces, interfaces and unions
// have PossibleTypes, enums have EnumValues and input objects InputFields.
type Type struct {
	Name          string
	Kind          TypeKind
	Description   string
	Fields        []*Field
	Interfaces    []string
	PossibleTypes []string
	EnumValues    []*EnumValue
	InputFields   []*InputValue
	OneOf         bool
}

// Field looks up an output field by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Arguments   []*InputValue
	// Async fields are resolved in per-depth batches.
	Async bool

	IsDeprecated      bool
	DeprecationReason string
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or an input object field.
type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

type TypeRefKind uint8

const (
	TypeRefNamed TypeRefKind = iota
	TypeRefList
	TypeRefNonNull
)

// TypeRef is a type expression: a named type, possibly wrapped in lists and
// non-null markers. Wrappers keep the wrapped type in OfType.
type TypeRef struct {
	Kind   TypeRefKind
	Named  string
	OfType *TypeRef
}

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefNonNull, OfType: t} }

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == TypeRefNonNull }

// IsList reports whether t is a list, looking through one non-null wrapper.
func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefNonNull {
		t = t.OfType
	}
	return t != nil && t.Kind == TypeRefList
}

// Unwrap strips one wrapper. Named types are returned as is.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefNamed {
		return t
	}
	return t.OfType
}

// Name returns the innermost named type.
func (t *TypeRef) Name() string {
	for t != nil && t.Kind != TypeRefNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// String renders t in SDL notation, e.g. [String!]!.
func (t *TypeRef) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *TypeRef) write(b *strings.Builder) {
	switch {
	case t == nil:
	case t.Kind == TypeRefNonNull:
		t.OfType.write(b)
		b.WriteByte('!')
	case t.Kind == TypeRefList:
		b.WriteByte('[')
		t.OfType.write(b)
		b.WriteByte(']')
	default:
		b.WriteString(t.Named)
	}
}
