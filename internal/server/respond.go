package server

import (
	"encoding/json"
	"errors"
	"net/http"

	language "github.com/hanpama/livebridge/internal/language"
)

// envelope is the body of every API response.
type envelope struct {
	Data   any        `json:"data"`
	Errors []apiError `json:"errors,omitempty"`
}

type apiLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type apiError struct {
	Message    string         `json:"message"`
	Locations  []apiLocation  `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// toAPIError keeps the locations and path of GraphQL errors.
func toAPIError(err error) apiError {
	var ge *language.Error
	if !errors.As(err, &ge) {
		return apiError{Message: err.Error()}
	}
	out := apiError{Message: ge.Message, Extensions: ge.Extensions}
	for _, loc := range ge.Locations {
		out.Locations = append(out.Locations, apiLocation{Line: loc.Line, Column: loc.Column})
	}
	for _, el := range ge.Path {
		out.Path = append(out.Path, el)
	}
	return out
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.logger.Debug("writing response failed", "err", err)
	}
	return status
}

func (h *Handler) ok(w http.ResponseWriter, data any) int {
	return h.write(w, http.StatusOK, envelope{Data: data})
}

// fail responds with err. A statusError decides the status; otherwise
// status is used.
func (h *Handler) fail(w http.ResponseWriter, status int, data any, err error) int {
	var se *statusError
	if errors.As(err, &se) {
		status = se.status
	}
	return h.write(w, status, envelope{Data: data, Errors: []apiError{toAPIError(err)}})
}
