// Package bridge connects a preview frame to editable forms. A Session
// tracks the queries the frame has open, runs them against the content API,
// binds every content document in their results to a form, and posts the
// reshaped results back whenever a form changes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	client "github.com/hanpama/livebridge/internal/client"
	content "github.com/hanpama/livebridge/internal/content"
	document "github.com/hanpama/livebridge/internal/document"
	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	executor "github.com/hanpama/livebridge/internal/executor"
	expand "github.com/hanpama/livebridge/internal/expand"
	form "github.com/hanpama/livebridge/internal/form"
	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// Alert messages shown to the editor.
const (
	AlertBuildFailed = "There was a problem building forms for your query"
	AlertSaved       = "Document saved!"
	AlertSaveFailed  = "There was a problem saving your document"
)

// AlertLevel is the severity of an Alert.
type AlertLevel string

const (
	AlertSuccess AlertLevel = "success"
	AlertError   AlertLevel = "error"
)

// Alert is a user-facing notification.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
}

// PostFunc delivers a message to the preview frame.
type PostFunc func(ctx context.Context, msg Outbound) error

// Payload is one query the preview frame has open.
type Payload struct {
	ID        string
	Query     string
	Variables map[string]any
	Data      map[string]any
}

// Config holds the collaborators of a Session.
type Config struct {
	// Schema is the GraphQL schema of the content API.
	Schema *schema.Schema
	// Content describes the collections documents belong to.
	Content *content.Schema
	// API runs queries and mutations against the content API.
	API client.API
	// Post delivers results to the preview frame.
	Post PostFunc
}

// Options configures optional Session behavior.
type Options struct {
	Logger  *slog.Logger
	Formify form.FormifyFunc
	Alerts  func(Alert)
	// Bus receives payload and form events. The global bus is used when nil.
	Bus *eventbus.Bus
}

// Option mutates Options.
type Option func(*Options)

func WithLogger(l *slog.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithFormify(fn form.FormifyFunc) Option { return func(o *Options) { o.Formify = fn } }
func WithAlerts(fn func(Alert)) Option       { return func(o *Options) { o.Alerts = fn } }
func WithEventBus(b *eventbus.Bus) Option    { return func(o *Options) { o.Bus = b } }

// Session is the state of one preview frame. Payload processing is
// serialized; HandleMessage, Refresh and Run may be called concurrently.
type Session struct {
	opts    Options
	logger  *slog.Logger
	base    *schema.Schema
	meta    *schema.Schema
	content *content.Schema
	api     client.API
	post    PostFunc
	forms   *form.Registry

	mu       sync.Mutex
	payloads []Payload
	trigger  chan struct{}
}

// NewSession creates a session. The metadata schema used for local
// execution is derived from cfg.Schema once.
func NewSession(cfg Config, opts ...Option) *Session {
	var o Options
	for _, f := range opts {
		f(&o)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opts:    o,
		logger:  logger.With(slog.String("component", "bridge")),
		base:    cfg.Schema,
		meta:    schema.WithMetadata(cfg.Schema),
		content: cfg.Content,
		api:     cfg.API,
		post:    cfg.Post,
		forms:   form.NewRegistry(),
		trigger: make(chan struct{}, 1),
	}
}

// Forms returns the registry holding the session's forms.
func (s *Session) Forms() *form.Registry { return s.forms }

// Payloads returns the tracked payloads in processing order.
func (s *Session) Payloads() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.payloads)
}

// HandleMessage applies one inbound message. An invalid message is rejected
// as a whole with an error wrapping ErrInvalidMessage. Opening or closing a
// payload reprocesses every remaining payload; errors reaching the content
// API are returned.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) error {
	msg, err := ParseMessage(raw)
	if err != nil {
		s.logger.Warn("message rejected", slog.Any("err", err))
		return err
	}
	switch msg.Type {
	case TypeOpen:
		s.open(Payload{ID: msg.ID, Query: msg.Query, Variables: msg.Variables, Data: msg.Data})
		return s.Refresh(ctx)
	case TypeClose:
		s.close(msg.ID)
		return s.Refresh(ctx)
	case TypeIsEditMode:
		return s.send(ctx, Outbound{Type: TypeEditMode})
	default:
		s.logger.Debug("message ignored", slog.String("type", msg.Type))
		return nil
	}
}

func (s *Session) open(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = slices.DeleteFunc(s.payloads, func(q Payload) bool { return q.ID == p.ID })
	s.payloads = append(s.payloads, p)
}

func (s *Session) close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = slices.DeleteFunc(s.payloads, func(q Payload) bool { return q.ID == id })
	s.forms.RemoveQuery(id)
	for _, removed := range s.forms.RemoveOrphaned() {
		s.logger.Debug("form removed", slog.String("form", removed), slog.String("payload", id))
	}
}

// Refresh reprocesses every tracked payload in order. Errors reaching the
// content API or the frame are joined and returned; the remaining payloads
// are still processed.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, p := range s.payloads {
		if err := s.process(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("payload %s: %w", p.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Run refreshes the session whenever a surfaced form changes, until ctx is
// done. Changes arriving during a refresh coalesce into one more refresh.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("refresh failed", slog.Any("err", err))
			}
		}
	}
}

// Close removes every form and forgets every payload.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = nil
	s.forms.RemoveAll()
}

func (s *Session) kick() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// process runs one payload. Query problems and field errors are reported to
// the editor and do not fail the call.
func (s *Session) process(ctx context.Context, p Payload) (err error) {
	if p.Query == "" {
		return nil
	}
	logger := s.logger.With(slog.String("payload", p.ID))

	start := time.Now()
	var fieldErrs []error
	eventbus.Send(ctx, s.opts.Bus, events.GraphQLStart{PayloadID: p.ID, Query: p.Query})
	defer func() {
		eventbus.Send(ctx, s.opts.Bus, events.GraphQLFinish{
			PayloadID: p.ID,
			Errors:    fieldErrs,
			Err:       err,
			Duration:  time.Since(start),
		})
	}()

	doc, err := language.ParseQuery(p.Query)
	if err != nil {
		s.buildFailed(logger, err)
		return nil
	}
	remote, err := expand.Expand(s.base, doc)
	if err != nil {
		s.buildFailed(logger, err)
		return nil
	}
	local, err := expand.Expand(s.meta, doc)
	if err != nil {
		s.buildFailed(logger, err)
		return nil
	}

	data, err := s.api.Request(ctx, language.PrintQuery(remote), p.Variables)
	if err != nil {
		return err
	}

	rt := &resolver{session: s, schema: s.meta, payload: p.ID}
	result := executor.New(rt, s.meta).Execute(ctx, executor.Request{
		Document:  local,
		Variables: p.Variables,
		RootValue: data,
	})
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fieldErrs = append(fieldErrs, e)
		}
		s.buildFailed(logger, fieldErrs...)
		return nil
	}
	return s.send(ctx, Outbound{Type: TypeUpdateData, ID: p.ID, Data: result.Data})
}

func (s *Session) buildFailed(logger *slog.Logger, errs ...error) {
	s.alert(Alert{Level: AlertError, Message: AlertBuildFailed})
	for _, err := range errs {
		attrs := []any{slog.String("err", err.Error())}
		var ge *language.Error
		if errors.As(err, &ge) && len(ge.Path) > 0 {
			attrs = append(attrs, slog.String("path", ge.Path.String()))
		}
		logger.Error("building forms failed", attrs...)
	}
}

func (s *Session) send(ctx context.Context, msg Outbound) error {
	if s.post == nil {
		return nil
	}
	return s.post(ctx, msg)
}

func (s *Session) alert(a Alert) {
	if s.opts.Alerts != nil {
		s.opts.Alerts(a)
		return
	}
	level := slog.LevelInfo
	if a.Level == AlertError {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, a.Message, slog.String("alert", string(a.Level)))
}

// submitter persists a document form through the update mutation.
func (s *Session) submitter(c *content.Collection, doc *document.Document) form.SubmitFunc {
	relativePath := doc.Sys.RelativePath
	return func(ctx context.Context, values map[string]any) error {
		params, err := s.content.TransformPayload(c.Name, values)
		if err == nil {
			err = client.UpdateDocument(ctx, s.api, c.Name, relativePath, params)
		}
		eventbus.Send(ctx, s.opts.Bus, events.FormSubmit{FormID: doc.Path(), Collection: c.Name, Err: err})
		if err != nil {
			s.alert(Alert{Level: AlertError, Message: AlertSaveFailed})
			s.logger.Error("saving document failed",
				slog.String("collection", c.Name),
				slog.String("relativePath", relativePath),
				slog.Any("err", err))
			return err
		}
		s.alert(Alert{Level: AlertSuccess, Message: AlertSaved})
		return nil
	}
}
