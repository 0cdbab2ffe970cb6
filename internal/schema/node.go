package schema

// Fields every content document type exposes. A type carrying both is
// treated as a content node.
const (
	SysField    = "_sys"
	ValuesField = "_values"
)

// IndexNodeTypes records which named types are content nodes. Builders call
// it once; call it again after adding types by hand.
//
// Objects and interfaces qualify when they expose an object-typed _sys field
// and a _values field. Unions qualify when every member does.
func (s *Schema) IndexNodeTypes() {
	nodes := make(map[string]bool)
	for name, t := range s.Types {
		switch t.Kind {
		case TypeKindObject, TypeKindInterface:
			if s.exposesDocumentFields(t) {
				nodes[name] = true
			}
		}
	}
	for name, t := range s.Types {
		if t.Kind != TypeKindUnion || len(t.PossibleTypes) == 0 {
			continue
		}
		all := true
		for _, member := range t.PossibleTypes {
			if !nodes[member] {
				all = false
				break
			}
		}
		if all {
			nodes[name] = true
		}
	}
	s.nodeTypes = nodes
}

func (s *Schema) exposesDocumentFields(t *Type) bool {
	sys := t.Field(SysField)
	if sys == nil || t.Field(ValuesField) == nil {
		return false
	}
	target := s.Types[sys.Type.Name()]
	return target != nil && target.Kind == TypeKindObject
}

// IsNodeType reports whether the named type is a content node.
func (s *Schema) IsNodeType(name string) bool {
	return s.nodeTypes[name]
}

// IsNodeRef reports whether the innermost named type of t is a content node,
// looking through list and non-null wrappers.
func (s *Schema) IsNodeRef(t *TypeRef) bool {
	if t == nil {
		return false
	}
	return s.nodeTypes[t.Name()]
}
