package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Query documents as parsed by gqlparser. Packages work on these aliases so
// that the parser stays an implementation detail of this package.
type (
	QueryDocument          = ast.QueryDocument
	OperationDefinition    = ast.OperationDefinition
	OperationList          = ast.OperationList
	Operation              = ast.Operation
	SelectionSet           = ast.SelectionSet
	Field                  = ast.Field
	InlineFragment         = ast.InlineFragment
	FragmentSpread         = ast.FragmentSpread
	FragmentDefinition     = ast.FragmentDefinition
	FragmentDefinitionList = ast.FragmentDefinitionList
	Directive              = ast.Directive
	DirectiveList          = ast.DirectiveList
	Source                 = ast.Source
	Schema                 = ast.Schema

	Path      = ast.Path
	PathName  = ast.PathName
	PathIndex = ast.PathIndex

	// Error is a GraphQL error with message, locations and path.
	Error     = gqlerror.Error
	ErrorList = gqlerror.List
	Location  = gqlerror.Location
)

const (
	Query        = ast.Query
	Mutation     = ast.Mutation
	Subscription = ast.Subscription

	// Variable is the kind of a $variable argument value.
	Variable = ast.Variable
)
