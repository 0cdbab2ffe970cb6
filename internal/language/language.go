// Package language parses and prints GraphQL documents.
package language

import (
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses a query document without validating it. Syntax errors
// are *Error values carrying the location.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources into one schema, built-in
// scalars and directives included.
func LoadSchema(sources ...*Source) (*Schema, error) {
	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PrintQuery renders a query document as GraphQL source.
func PrintQuery(doc *QueryDocument) string {
	var b strings.Builder
	formatter.NewFormatter(&b).FormatQueryDocument(doc)
	return b.String()
}
