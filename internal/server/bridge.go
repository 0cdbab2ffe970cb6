package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	bridge "github.com/hanpama/livebridge/internal/bridge"
	reqid "github.com/hanpama/livebridge/internal/reqid"
)

// serveBridge upgrades the request and runs one session for the connection.
// The session lives until the preview frame disconnects.
func (h *Handler) serveBridge(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Warn("bridge upgrade failed", slog.Any("err", err))
		return http.StatusBadRequest
	}
	defer conn.Close()
	if h.opt.MaxBodyBytes > 0 {
		conn.SetReadLimit(h.opt.MaxBodyBytes)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	id, _ := reqid.FromContext(ctx)
	logger := h.logger.With(slog.String("conn", id))

	var wmu sync.Mutex
	post := func(_ context.Context, msg bridge.Outbound) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(msg)
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithAlerts(h.addAlert),
		bridge.WithFormify(h.opt.Formify),
	}
	if h.opt.Bus != nil {
		opts = append(opts, bridge.WithEventBus(h.opt.Bus))
	}
	s := bridge.NewSession(bridge.Config{
		Schema:  h.cfg.Schema,
		Content: h.cfg.Content,
		API:     h.cfg.API,
		Post:    post,
	}, opts...)
	h.addSession(id, s)
	defer h.removeSession(id)

	go func() { _ = s.Run(ctx) }()

	logger.Info("bridge connected", slog.String("remote", r.RemoteAddr))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("bridge connection lost", slog.Any("err", err))
			} else {
				logger.Info("bridge disconnected")
			}
			return http.StatusSwitchingProtocols
		}
		if err := s.HandleMessage(ctx, raw); err != nil && !errors.Is(err, bridge.ErrInvalidMessage) {
			logger.Error("bridge message failed", slog.Any("err", err))
		}
	}
}

func (h *Handler) addSession(id string, s *bridge.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = s
	h.order = append(h.order, id)
}

func (h *Handler) removeSession(id string) {
	h.mu.Lock()
	s := h.sessions[id]
	delete(h.sessions, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

type sessionRef struct {
	id      string
	session *bridge.Session
}

// snapshot returns the connected sessions in connection order.
func (h *Handler) snapshot() []sessionRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]sessionRef, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, sessionRef{id: id, session: h.sessions[id]})
	}
	return out
}
