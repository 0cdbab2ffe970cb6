package server

import (
	"context"
	"net/http"

	expand "github.com/hanpama/livebridge/internal/expand"
	schema "github.com/hanpama/livebridge/internal/schema"
)

type expandResult struct {
	Query  string     `json:"query,omitempty"`
	Errors []apiError `json:"errors,omitempty"`
}

// expand returns the query the bridge sends to the content API for each
// request. With ?schema=local the query run against form values is
// returned instead.
func (h *Handler) expand(_ context.Context, w http.ResponseWriter, r *http.Request) int {
	reqs, batch, err := h.decodeQueries(r)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, nil, err)
	}

	sch := h.cfg.Schema
	if r.URL.Query().Get("schema") == "local" {
		sch = schema.WithMetadata(sch)
	}
	out := make([]expandResult, len(reqs))
	for i, req := range reqs {
		q, err := expand.Query(sch, req.Query)
		if err != nil {
			out[i].Errors = []apiError{toAPIError(err)}
			continue
		}
		out[i].Query = q
	}
	if batch {
		return h.write(w, http.StatusOK, out)
	}
	return h.write(w, http.StatusOK, out[0])
}
