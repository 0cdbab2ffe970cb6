package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	bridge "github.com/hanpama/livebridge/internal/bridge"
	client "github.com/hanpama/livebridge/internal/client"
	content "github.com/hanpama/livebridge/internal/content"
	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	form "github.com/hanpama/livebridge/internal/form"
	reqid "github.com/hanpama/livebridge/internal/reqid"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// Handler is an http.Handler that serves the preview bridge and the editor API.
//
//	GET    /bridge                  websocket carrying preview frame messages
//	GET    /api/forms               surfaced forms of every connected frame
//	GET    /api/forms/{id...}       one form
//	PATCH  /api/forms/{id...}       change form values
//	POST   /api/submit/{id...}      submit a form
//	GET    /api/alerts              recent alerts
//	GET    /expand, POST /expand    expand a query the way the bridge does
type Handler struct {
	cfg      Config
	opt      Options
	logger   *slog.Logger
	mux      *http.ServeMux
	cors     cors
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*bridge.Session
	order    []string
	alerts   []bridge.Alert
}

// Config holds what every bridge session is built from.
type Config struct {
	Schema  *schema.Schema
	Content *content.Schema
	API     client.API
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout. Bridge connections are not limited.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of request bodies and bridge messages.
	// 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled and
	// bridge connections must come from the serving host.
	CORS CORSOptions

	// MaxAlerts is the number of alerts kept for the editor.
	MaxAlerts int

	Logger  *slog.Logger
	Formify form.FormifyFunc
	// Bus receives request events. The global bus is used when nil.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option     { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                     { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option        { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMaxAlerts(n int) Option             { return func(o *Options) { o.MaxAlerts = n } }
func WithLogger(l *slog.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithFormify(fn form.FormifyFunc) Option { return func(o *Options) { o.Formify = fn } }
func WithEventBus(b *eventbus.Bus) Option    { return func(o *Options) { o.Bus = b } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// New creates a handler serving sessions built from cfg.
func New(cfg Config, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, MaxAlerts: 50}
	for _, f := range opts {
		f(&op)
	}
	logger := op.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		cfg:      cfg,
		opt:      op,
		logger:   logger.With(slog.String("component", "server")),
		mux:      http.NewServeMux(),
		cors:     newCORS(op.CORS),
		sessions: make(map[string]*bridge.Session),
	}
	if h.cors.enabled() {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return h.cors.allows(r.Header.Get("Origin"))
		}
	}

	h.route("GET /bridge", true, h.serveBridge)
	h.route("GET /api/forms", false, h.listForms)
	h.route("GET /api/forms/{id...}", false, h.getForm)
	h.route("PATCH /api/forms/{id...}", false, h.patchForm)
	h.route("POST /api/submit/{id...}", false, h.submitForm)
	h.route("GET /api/alerts", false, h.listAlerts)
	h.route("GET /expand", false, h.expand)
	h.route("POST /expand", false, h.expand)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.cors.apply(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// handlerFunc serves one route and returns the status it responded with.
type handlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) int

// route registers fn under pattern. Every request gets an id and is reported
// on the event bus; long-lived routes skip the default timeout.
func (h *Handler) route(pattern string, long bool, fn handlerFunc) {
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, ok := ctx.Deadline(); !ok && !long && h.opt.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
			defer cancel()
		}
		ctx, _ = reqid.NewContext(ctx)

		start := time.Now()
		eventbus.Send(ctx, h.opt.Bus, events.HTTPStart{Request: r, Route: pattern})
		status := fn(ctx, w, r.WithContext(ctx))
		eventbus.Send(ctx, h.opt.Bus, events.HTTPFinish{Request: r, Route: pattern, Status: status, Duration: time.Since(start)})
	})
}

// Close ends every session. Open bridge connections are not closed.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.order {
		h.sessions[id].Close()
	}
	h.sessions = make(map[string]*bridge.Session)
	h.order = nil
}
