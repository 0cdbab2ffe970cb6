package schema

const (
	// MetadataField is the opaque per-object field carrying edit-path metadata.
	MetadataField = "_metadata"
	// JSONScalar is the scalar the metadata field is typed with.
	JSONScalar = "JSON"
)

// WithMetadata returns a copy of s where every object type gains a
// `_metadata: JSON!` field. Fields returning content nodes are marked async
// so document resolution is batched per depth; every other field is sync.
// s itself is not modified.
func WithMetadata(s *Schema) *Schema {
	out := Clone(s)
	if _, ok := out.Types[JSONScalar]; !ok {
		out.AddType(NewType(JSONScalar, TypeKindScalar, ""))
	}
	out.IndexNodeTypes()
	for _, t := range out.Types {
		if t.Kind != TypeKindObject && t.Kind != TypeKindInterface {
			continue
		}
		for _, f := range t.Fields {
			f.Async = out.IsNodeRef(f.Type)
		}
		if t.Kind == TypeKindObject && t.Field(MetadataField) == nil {
			t.AddField(NewField(MetadataField, "", NonNullType(NamedType(JSONScalar))))
		}
	}
	return out
}

// Clone returns a deep copy of the type and field structure of s. Builtin
// scalar and directive values are shared.
func Clone(s *Schema) *Schema {
	out := NewSchema(s.Description)
	out.QueryType = s.QueryType
	out.MutationType = s.MutationType
	out.SubscriptionType = s.SubscriptionType
	for name, t := range s.Types {
		if isBuiltin(t) {
			out.Types[name] = t
			continue
		}
		cp := *t
		cp.Fields = make([]*Field, len(t.Fields))
		for i, f := range t.Fields {
			fc := *f
			cp.Fields[i] = &fc
		}
		cp.Interfaces = append([]string(nil), t.Interfaces...)
		cp.PossibleTypes = append([]string(nil), t.PossibleTypes...)
		cp.EnumValues = append([]*EnumValue(nil), t.EnumValues...)
		cp.InputFields = append([]*InputValue(nil), t.InputFields...)
		out.Types[name] = &cp
	}
	for name, d := range s.Directives {
		out.Directives[name] = d
	}
	out.nodeTypes = s.nodeTypes
	return out
}
