package schema

// Scalars and directives present in every schema. They are shared between
// clones and never rendered.
var (
	stringType  = scalar("String")
	intType     = scalar("Int")
	floatType   = scalar("Float")
	booleanType = scalar("Boolean")
	idType      = scalar("ID")

	includeDirective = conditional("include", "Included when true.")
	skipDirective    = conditional("skip", "Skipped when true.")
)

func scalar(name string) *Type {
	return &Type{Name: name, Kind: TypeKindScalar}
}

// conditional builds one of the @include/@skip pair.
func conditional(name, ifDoc string) *Directive {
	return &Directive{
		Name:      name,
		Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
		Arguments: []*InputValue{{
			Name:        "if",
			Description: ifDoc,
			Type:        NonNullType(NamedType("Boolean")),
		}},
	}
}

func isBuiltin(t *Type) bool {
	switch t {
	case stringType, intType, floatType, booleanType, idType:
		return true
	}
	return false
}
