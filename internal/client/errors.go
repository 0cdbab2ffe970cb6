package client

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

var (
	// ErrNoEndpoint indicates the client was built without an endpoint.
	ErrNoEndpoint = errors.New("client: endpoint not configured")
	// ErrNotFound indicates a node lookup returned no document.
	ErrNotFound = errors.New("client: document not found")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.Status, e.Body)
}

// ResponseError carries the GraphQL errors of a response.
type ResponseError struct {
	Errors gqlerror.List
}

func (e *ResponseError) Error() string {
	return "client: " + e.Errors.Error()
}
