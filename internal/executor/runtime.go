package executor

import (
	"context"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// Runtime resolves field values for the Executor.
//
// ResolveSync is only called for fields with Async == false. BatchResolveAsync
// is called once per depth with every live async task of that depth and must
// return one result per task, in task order; results are independent of each
// other. Errors from any method become located GraphQL errors.
//
// Implementations must not mutate task sources or arguments.
type Runtime interface {
	// ResolveSync resolves one field. Returning (nil, nil) yields null.
	ResolveSync(ctx context.Context, task ResolveTask) (any, error)

	// BatchResolveAsync resolves one depth of async fields.
	BatchResolveAsync(ctx context.Context, tasks []ResolveTask) []ResolveResult

	// ResolveType names the object type of a value of an interface or union.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe value.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// ResolveTask describes one field instance to resolve.
type ResolveTask struct {
	// ObjectType names the parent object type.
	ObjectType string
	Field      string
	ReturnType *schema.TypeRef
	// Aliases lists the explicit aliases of the merged field nodes in
	// document order. Resolvers reading payloads that were fetched under an
	// alias look there when the field name holds nothing.
	Aliases []string
	// Source is the parent value, or the root value for root fields.
	Source any
	// Args holds the coerced arguments, defaults applied.
	Args map[string]any
}

// ResolveResult is the outcome of one task of a batch.
type ResolveResult struct {
	Value any
	Error error
}

// Request is one execution of an operation.
type Request struct {
	Document *language.QueryDocument
	// OperationName selects the operation; it may be empty when the document
	// holds exactly one.
	OperationName string
	Variables     map[string]any
	RootValue     any
}

// Result is the response of an execution. Data is nil when the request
// failed before any field ran.
type Result struct {
	Data   map[string]any     `json:"data"`
	Errors language.ErrorList `json:"errors,omitempty"`
}
