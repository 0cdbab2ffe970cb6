package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	bridge "github.com/hanpama/livebridge/internal/bridge"
	form "github.com/hanpama/livebridge/internal/form"
)

// formView is the editor's view of a surfaced form.
type formView struct {
	Session string         `json:"session"`
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Global  bool           `json:"global,omitempty"`
	Dirty   bool           `json:"dirty"`
	Queries []string       `json:"queries"`
	Fields  []form.Field   `json:"fields"`
	Values  map[string]any `json:"values"`
}

func viewOf(session string, f *form.Form) formView {
	return formView{
		Session: session,
		ID:      f.ID(),
		Label:   f.Label(),
		Global:  f.Global(),
		Dirty:   f.Dirty(),
		Queries: f.Queries(),
		Fields:  f.Fields(),
		Values:  f.Values(),
	}
}

type boundForm struct {
	session string
	form    *form.Form
}

// findForms returns the surfaced forms with id, optionally limited to one
// session. Hidden forms are never exposed to the editor.
func (h *Handler) findForms(id, session string) []boundForm {
	var out []boundForm
	for _, ref := range h.snapshot() {
		if session != "" && ref.id != session {
			continue
		}
		if !ref.session.Forms().IsVisible(id) {
			continue
		}
		if f := ref.session.Forms().Find(id); f != nil {
			out = append(out, boundForm{session: ref.id, form: f})
		}
	}
	return out
}

func (h *Handler) listForms(_ context.Context, w http.ResponseWriter, r *http.Request) int {
	views := []formView{}
	for _, ref := range h.snapshot() {
		for _, f := range ref.session.Forms().Visible() {
			views = append(views, viewOf(ref.id, f))
		}
	}
	return h.ok(w, views)
}

func (h *Handler) getForm(_ context.Context, w http.ResponseWriter, r *http.Request) int {
	forms := h.findForms(r.PathValue("id"), r.URL.Query().Get("session"))
	if len(forms) == 0 {
		return h.notFound(w, r)
	}
	return h.ok(w, viewOf(forms[0].session, forms[0].form))
}

// patchRequest either replaces all values or sets the value at a dotted path.
type patchRequest struct {
	Path   string         `json:"path,omitempty"`
	Value  any            `json:"value,omitempty"`
	Values map[string]any `json:"values,omitempty"`
}

// patchForm changes every matching form. Each change reruns the payloads of
// the form's session.
func (h *Handler) patchForm(_ context.Context, w http.ResponseWriter, r *http.Request) int {
	var req patchRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return h.fail(w, http.StatusBadRequest, nil, err)
	}
	if req.Values == nil && req.Path == "" {
		return h.fail(w, http.StatusBadRequest, nil, errors.New("patch needs a path or values"))
	}

	forms := h.findForms(r.PathValue("id"), r.URL.Query().Get("session"))
	if len(forms) == 0 {
		return h.notFound(w, r)
	}
	views := make([]formView, 0, len(forms))
	for _, b := range forms {
		if req.Values != nil {
			b.form.SetValues(req.Values)
		} else if err := b.form.Change(req.Path, req.Value); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, form.ErrInvalidPath) {
				status = http.StatusUnprocessableEntity
			}
			return h.fail(w, status, nil, err)
		}
		views = append(views, viewOf(b.session, b.form))
	}
	return h.ok(w, views)
}

// submitForm submits the first matching form. Saving reports its own alert.
func (h *Handler) submitForm(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	forms := h.findForms(r.PathValue("id"), r.URL.Query().Get("session"))
	if len(forms) == 0 {
		return h.notFound(w, r)
	}
	b := forms[0]
	if err := b.form.Submit(ctx); err != nil {
		return h.fail(w, http.StatusBadGateway, viewOf(b.session, b.form), err)
	}
	return h.ok(w, viewOf(b.session, b.form))
}

func (h *Handler) listAlerts(_ context.Context, w http.ResponseWriter, r *http.Request) int {
	h.mu.Lock()
	alerts := append([]bridge.Alert{}, h.alerts...)
	h.mu.Unlock()
	return h.ok(w, alerts)
}

// addAlert records a for the editor, keeping the most recent MaxAlerts.
func (h *Handler) addAlert(a bridge.Alert) {
	level := slog.LevelInfo
	if a.Level == bridge.AlertError {
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, a.Message, slog.String("alert", string(a.Level)))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, a)
	if n := h.opt.MaxAlerts; n > 0 && len(h.alerts) > n {
		h.alerts = append([]bridge.Alert(nil), h.alerts[len(h.alerts)-n:]...)
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) int {
	return h.fail(w, http.StatusNotFound, nil, fmt.Errorf("form not found: %s", r.PathValue("id")))
}
