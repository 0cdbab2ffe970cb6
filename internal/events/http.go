package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the server accepts a request.
// Context carries the request context.
type HTTPStart struct {
	Request *http.Request
	// Route is the pattern the request matched, such as "/bridge".
	Route string
}

// HTTPFinish is emitted after the handler returns. For the bridge
// websocket this is when the connection closes.
type HTTPFinish struct {
	Request  *http.Request
	Route    string
	Status   int
	Duration time.Duration
}
