// Package form holds editable forms: the live values of one document, the
// queries currently depending on it, and the registry that keeps one form
// per document path.
package form

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidPath is returned by Change for a path that does not address a
// value container.
var ErrInvalidPath = errors.New("form: invalid value path")

// SubmitFunc persists a form's values.
type SubmitFunc func(ctx context.Context, values map[string]any) error

// Config configures a new form.
type Config struct {
	ID            string
	Label         string
	InitialValues map[string]any
	Fields        []Field
	OnSubmit      SubmitFunc
	Queries       []string
}

// Form is the editable state of one document. It is safe for concurrent use.
type Form struct {
	id       string
	label    string
	fields   []Field
	onSubmit SubmitFunc
	global   bool

	mu      sync.Mutex
	values  map[string]any
	initial map[string]any
	queries []string
	subs    map[int]func(*Form)
	nextSub int
}

// New creates a form bound to a document.
func New(cfg Config) *Form {
	f := &Form{
		id:       cfg.ID,
		label:    cfg.Label,
		fields:   cfg.Fields,
		onSubmit: cfg.OnSubmit,
		values:   cloneMap(cfg.InitialValues),
		initial:  cloneMap(cfg.InitialValues),
		subs:     make(map[int]func(*Form)),
	}
	for _, q := range cfg.Queries {
		f.AddQuery(q)
	}
	return f
}

// NewGlobal creates a form that is not tied to a document view. Global forms
// outlive the queries that created them.
func NewGlobal(cfg Config) *Form {
	f := New(cfg)
	f.global = true
	return f
}

func (f *Form) ID() string      { return f.id }
func (f *Form) Label() string   { return f.label }
func (f *Form) Global() bool    { return f.global }
func (f *Form) Fields() []Field { return f.fields }

// Values returns a copy of the current values.
func (f *Form) Values() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneMap(f.values)
}

// Dirty reports whether the values differ from the initial ones.
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !reflect.DeepEqual(f.values, f.initial)
}

// Queries returns the ids of the queries depending on the form.
func (f *Form) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// AddQuery records id as a dependent query. Adding an id twice is a no-op.
func (f *Form) AddQuery(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.queries, id) {
		f.queries = append(f.queries, id)
	}
}

// RemoveQuery forgets id. Removing an unknown id is a no-op.
func (f *Form) RemoveQuery(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = slices.DeleteFunc(f.queries, func(q string) bool { return q == id })
}

// Orphaned reports whether no query depends on the form.
func (f *Form) Orphaned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries) == 0
}

// Subscribe calls fn after every value change until the returned function is
// called.
func (f *Form) Subscribe(fn func(*Form)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// SetValues replaces all values.
func (f *Form) SetValues(values map[string]any) {
	f.mu.Lock()
	f.values = cloneMap(values)
	f.mu.Unlock()
	f.notify()
}

// Change sets the value at a dotted path such as "blocks.0.title".
// Intermediate objects are created as needed; list indexes must exist.
func (f *Form) Change(path string, value any) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	f.mu.Lock()
	err := setIn(f.values, strings.Split(path, "."), cloneValue(value))
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	f.notify()
	return nil
}

// Reset restores the initial values.
func (f *Form) Reset() {
	f.mu.Lock()
	f.values = cloneMap(f.initial)
	f.mu.Unlock()
	f.notify()
}

// Submit hands the current values to the submit handler. The values are kept
// whether or not it succeeds.
func (f *Form) Submit(ctx context.Context) error {
	if f.onSubmit == nil {
		return fmt.Errorf("form: %s has no submit handler", f.id)
	}
	return f.onSubmit(ctx, f.Values())
}

func (f *Form) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.subs)
}

func (f *Form) notify() {
	f.mu.Lock()
	subs := make([]func(*Form), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(f)
	}
}

func setIn(container any, segs []string, value any) error {
	key := segs[0]
	last := len(segs) == 1
	switch c := container.(type) {
	case map[string]any:
		if last {
			c[key] = value
			return nil
		}
		next, ok := c[key]
		if !ok || next == nil {
			next = make(map[string]any)
			c[key] = next
		}
		return setIn(next, segs[1:], value)
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return fmt.Errorf("index %q out of range", key)
		}
		if last {
			c[i] = value
			return nil
		}
		if c[i] == nil {
			c[i] = make(map[string]any)
		}
		return setIn(c[i], segs[1:], value)
	default:
		return fmt.Errorf("%q is not a container", key)
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
