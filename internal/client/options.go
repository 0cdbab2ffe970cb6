package client

import (
	"net/http"
	"time"

	eventbus "github.com/hanpama/livebridge/internal/eventbus"
)

// Options configures the content API client.
//
// Defaults:
// - HTTPClient: http.DefaultClient
// - Timeout:    10s (used only if the request context has no deadline)
//
// Endpoint must be provided. Token is sent as a bearer token when set.
type Options struct {
	Endpoint   string
	Token      string
	Headers    http.Header
	HTTPClient *http.Client
	Timeout    time.Duration

	// Bus receives remote request events. The global bus is used when nil.
	Bus *eventbus.Bus
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HTTPClient: http.DefaultClient,
		Timeout:    10 * time.Second,
	}
}

func WithEndpoint(url string) Option       { return func(o *Options) { o.Endpoint = url } }
func WithToken(token string) Option        { return func(o *Options) { o.Token = token } }
func WithHTTPClient(c *http.Client) Option { return func(o *Options) { o.HTTPClient = c } }
func WithTimeout(d time.Duration) Option   { return func(o *Options) { o.Timeout = d } }
func WithEventBus(b *eventbus.Bus) Option  { return func(o *Options) { o.Bus = b } }
func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		o.Headers.Add(key, value)
	}
}
