package form

import (
	"sync"
)

// Registry keeps at most one form per id. Forms are either visible, shown
// to the editor, or hidden, kept only to hold state.
type Registry struct {
	mu    sync.Mutex
	forms map[string]*entry
	order []string
}

type entry struct {
	form    *Form
	visible bool
}

func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*entry)}
}

// Find returns the form registered under id, or nil.
func (r *Registry) Find(id string) *Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.forms[id]; e != nil {
		return e.form
	}
	return nil
}

// Add registers f as visible. It returns the form already registered under
// the same id when there is one, and f otherwise.
func (r *Registry) Add(f *Form) *Form { return r.add(f, true) }

// AddHidden registers f without surfacing it.
func (r *Registry) AddHidden(f *Form) *Form { return r.add(f, false) }

func (r *Registry) add(f *Form, visible bool) *Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.forms[f.ID()]; e != nil {
		return e.form
	}
	r.forms[f.ID()] = &entry{form: f, visible: visible}
	r.order = append(r.order, f.ID())
	return f
}

// IsVisible reports whether the form registered under id is surfaced.
func (r *Registry) IsVisible(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.forms[id]
	return e != nil && e.visible
}

// All returns every form, hidden ones included, in registration order.
func (r *Registry) All() []*Form {
	return r.list(func(*entry) bool { return true })
}

// Visible returns the surfaced forms in registration order.
func (r *Registry) Visible() []*Form {
	return r.list(func(e *entry) bool { return e.visible })
}

func (r *Registry) list(keep func(*entry) bool) []*Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Form, 0, len(r.order))
	for _, id := range r.order {
		if e := r.forms[id]; keep(e) {
			out = append(out, e.form)
		}
	}
	return out
}

// Len returns the number of registered forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Remove drops the form registered under id and its subscriptions.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

func (r *Registry) remove(id string) {
	e := r.forms[id]
	if e == nil {
		return
	}
	e.form.close()
	delete(r.forms, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// RemoveQuery detaches a query id from every form.
func (r *Registry) RemoveQuery(queryID string) {
	for _, f := range r.All() {
		f.RemoveQuery(queryID)
	}
}

// RemoveOrphaned drops every non-global form without dependent queries and
// returns the removed ids.
func (r *Registry) RemoveOrphaned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for _, id := range append([]string(nil), r.order...) {
		f := r.forms[id].form
		if f.Global() || !f.Orphaned() {
			continue
		}
		r.remove(id)
		removed = append(removed, id)
	}
	return removed
}

// RemoveAll drops every form.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.forms {
		e.form.close()
	}
	r.forms = make(map[string]*entry)
	r.order = nil
}
