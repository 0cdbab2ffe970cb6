package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
	"github.com/stretchr/testify/require"
)

type resolveFunc func(task ResolveTask) (any, error)

// stubRuntime reads fields out of map sources unless a resolver is set for
// "Type.field". Batches are recorded field by field.
type stubRuntime struct {
	resolvers map[string]resolveFunc
	serialize func(typeName string, v any) (any, error)

	mu      sync.Mutex
	batches [][]string
	syncs   []string
	tasks   []ResolveTask
	ctxs    []context.Context
}

func (r *stubRuntime) resolve(task ResolveTask) (any, error) {
	if fn, ok := r.resolvers[task.ObjectType+"."+task.Field]; ok {
		return fn(task)
	}
	source, _ := task.Source.(map[string]any)
	return source[task.Field], nil
}

func (r *stubRuntime) ResolveSync(ctx context.Context, task ResolveTask) (any, error) {
	r.mu.Lock()
	r.syncs = append(r.syncs, task.ObjectType+"."+task.Field)
	r.tasks = append(r.tasks, task)
	r.ctxs = append(r.ctxs, ctx)
	r.mu.Unlock()
	return r.resolve(task)
}

func (r *stubRuntime) BatchResolveAsync(ctx context.Context, tasks []ResolveTask) []ResolveResult {
	names := make([]string, len(tasks))
	results := make([]ResolveResult, len(tasks))
	for i, task := range tasks {
		names[i] = task.ObjectType + "." + task.Field
		v, err := r.resolve(task)
		results[i] = ResolveResult{Value: v, Error: err}
	}
	r.mu.Lock()
	r.batches = append(r.batches, names)
	r.tasks = append(r.tasks, tasks...)
	r.ctxs = append(r.ctxs, ctx)
	r.mu.Unlock()
	return results
}

func (r *stubRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("no type for %s value", abstractType)
}

func (r *stubRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if r.serialize != nil {
		return r.serialize(typeName, value)
	}
	return value, nil
}

func buildSchema(t *testing.T, sdl string, async ...string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	for _, name := range async {
		typeName, fieldName, _ := strings.Cut(name, ".")
		f := sch.Types[typeName].Field(fieldName)
		require.NotNil(t, f, name)
		f.SetAsync(true)
	}
	return sch
}

func run(t *testing.T, sch *schema.Schema, rt Runtime, query string, vars map[string]any, root any) *Result {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return New(rt, sch).Execute(context.Background(), Request{Document: doc, Variables: vars, RootValue: root})
}

func messages(errs language.ErrorList) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}
