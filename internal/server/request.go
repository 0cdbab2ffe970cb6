package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// statusError rejects a request with a specific HTTP status.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func rejectf(status int, format string, args ...any) error {
	return &statusError{status: status, msg: fmt.Sprintf(format, args...)}
}

// queryRequest is one GraphQL-over-HTTP request.
type queryRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// readBody reads a JSON body of at most MaxBodyBytes.
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, rejectf(http.StatusUnsupportedMediaType, "unsupported Content-Type %q", ct)
		}
	}
	limit := h.opt.MaxBodyBytes
	var src io.Reader = r.Body
	if limit > 0 {
		src = io.LimitReader(r.Body, limit+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, rejectf(http.StatusBadRequest, "reading body: %v", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, rejectf(http.StatusRequestEntityTooLarge, "body exceeds %d bytes", limit)
	}
	return body, nil
}

// decodeJSON reads the body into v.
func (h *Handler) decodeJSON(r *http.Request, v any) error {
	body, err := h.readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return rejectf(http.StatusBadRequest, "invalid JSON: %v", err)
	}
	return nil
}

// decodeQueries reads the queries of a request: URL parameters for GET, a
// JSON object or a JSON array (batch) otherwise.
func (h *Handler) decodeQueries(r *http.Request) (reqs []queryRequest, batch bool, err error) {
	if r.Method == http.MethodGet {
		params := r.URL.Query()
		req := queryRequest{Query: params.Get("query"), OperationName: params.Get("operationName")}
		if raw := params.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return nil, false, rejectf(http.StatusBadRequest, "invalid variables: %v", err)
			}
		}
		reqs = []queryRequest{req}
	} else {
		body, err := h.readBody(r)
		if err != nil {
			return nil, false, err
		}
		var raw json.RawMessage = body
		if batch = len(body) > 0 && body[0] == '['; !batch {
			raw = append([]byte{'['}, append(body, ']')...)
		}
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, false, rejectf(http.StatusBadRequest, "invalid JSON: %v", err)
		}
		if len(reqs) == 0 {
			return nil, false, rejectf(http.StatusBadRequest, "empty batch")
		}
	}
	for _, req := range reqs {
		if req.Query == "" {
			return nil, false, rejectf(http.StatusBadRequest, "missing query")
		}
	}
	return reqs, batch, nil
}
