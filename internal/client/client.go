// Package client talks to the remote content API: a GraphQL endpoint served
// over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	language "github.com/hanpama/livebridge/internal/language"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// API runs GraphQL operations against the content API.
type API interface {
	Request(ctx context.Context, query string, variables map[string]any) (map[string]any, error)
}

// Client is an API over HTTP. It is safe for concurrent use.
type Client struct {
	opts *Options
}

var _ API = (*Client)(nil)

func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return &Client{opts: o}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors gqlerror.List  `json:"errors"`
}

// Request posts query and returns the data of the response. GraphQL errors
// in the response are returned as a *ResponseError.
func (c *Client) Request(ctx context.Context, query string, variables map[string]any) (data map[string]any, err error) {
	if c.opts.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if _, ok := ctx.Deadline(); !ok && c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	op := operationName(query)
	eventbus.Send(ctx, c.opts.Bus, events.RemoteStart{Endpoint: c.opts.Endpoint, OperationName: op})
	status := 0
	defer func() {
		eventbus.Send(ctx, c.opts.Bus, events.RemoteFinish{
			Endpoint:      c.opts.Endpoint,
			OperationName: op,
			Status:        status,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	for k, vs := range c.opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	res, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	defer res.Body.Close()
	status = res.StatusCode

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Status: res.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, &ResponseError{Errors: out.Errors}
	}
	return out.Data, nil
}


// operationName returns the name of the first operation in query, or "".
func operationName(query string) string {
	doc, err := language.ParseQuery(query)
	if err != nil || len(doc.Operations) == 0 {
		return ""
	}
	return doc.Operations[0].Name
}
