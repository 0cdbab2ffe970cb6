package expand

import (
	language "github.com/hanpama/livebridge/internal/language"
)

// copyDocument copies doc deeply enough that selection sets can be rewritten
// in place. Arguments, directives and variable definitions are shared; the
// expander never writes to them.
func copyDocument(doc *language.QueryDocument) *language.QueryDocument {
	out := *doc
	out.Operations = make(language.OperationList, len(doc.Operations))
	for i, op := range doc.Operations {
		cp := *op
		cp.SelectionSet = copySelectionSet(op.SelectionSet)
		out.Operations[i] = &cp
	}
	out.Fragments = make(language.FragmentDefinitionList, len(doc.Fragments))
	for i, frag := range doc.Fragments {
		cp := *frag
		cp.SelectionSet = copySelectionSet(frag.SelectionSet)
		out.Fragments[i] = &cp
	}
	return &out
}

func copySelectionSet(set language.SelectionSet) language.SelectionSet {
	if set == nil {
		return nil
	}
	out := make(language.SelectionSet, len(set))
	for i, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			cp := *sel
			cp.SelectionSet = copySelectionSet(sel.SelectionSet)
			out[i] = &cp
		case *language.InlineFragment:
			cp := *sel
			cp.SelectionSet = copySelectionSet(sel.SelectionSet)
			out[i] = &cp
		case *language.FragmentSpread:
			cp := *sel
			out[i] = &cp
		default:
			out[i] = sel
		}
	}
	return out
}
