// Package ws exposes the realtime sessions over websocket for browser clients.
// Frames are JSON objects {type, ref, data, timestamp} in both directions.
package ws

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 64 * 1024
)

// ISessions is the part of the orchestrator the transport needs.
type ISessions interface {
	NewSession() *runtime.SessionHandler
	GetPresence(ctx context.Context, userID chat.UserID) (chat.Presence, error)
}

type inboundFrame struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type Handler struct {
	log             *slog.Logger
	sessions        ISessions
	upgrader        websocket.Upgrader
	bufferSize      int
	deliveryTimeout time.Duration
}

func NewHandler(log *slog.Logger, sessions ISessions, bufferSize int, deliveryTimeout time.Duration) *Handler {
	return &Handler{
		log:             log,
		sessions:        sessions,
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP authenticates the handshake before upgrading: a bad token gets a plain 401
// and never becomes a session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := h.sessions.NewSession()
	user, err := session.Authenticate(ctx, auth.BearerFromRequest(r))
	if err != nil {
		respondError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "user_id", user.ID, "error", err)
		session.Close(ctx)
		return
	}
	defer conn.Close()

	out := sink.NewConnectionSink(h.log, h.bufferSize, h.deliveryTimeout)
	if err := session.Activate(ctx, out); err != nil {
		out.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, errors.Public(err).Error()),
			time.Now().Add(writeWait))
		return
	}
	defer func() {
		session.Close(context.WithoutCancel(ctx))
		out.Close()
	}()

	readErr := make(chan error, 1)
	go h.read(ctx, conn, session, readErr)
	h.write(ctx, conn, user, out, readErr)
}

// read is the only reader of conn. Frames reach the session one at a time.
func (h *Handler) read(ctx context.Context, conn *websocket.Conn, session *runtime.SessionHandler, readErr chan<- error) {
	conn.SetReadLimit(maxFrameLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.log.Debug("Unreadable websocket frame", "error", err)
		}
		// Rejections, including unreadable frames, come back as error events.
		_ = session.Handle(ctx, event.Inbound{
			Type: event.Name(frame.Type),
			Ref:  frame.Ref,
			Data: frame.Data,
		})
	}
}

// write is the only writer of conn.
func (h *Handler) write(ctx context.Context, conn *websocket.Conn, user chat.User, out *sink.ConnectionSink, readErr <-chan error) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Websocket read error", "user_id", user.ID, "error", err)
			}
			return
		case <-out.Done():
			for _, e := range out.Pending() {
				if h.send(conn, user, e) != nil {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case e := <-out.Events():
			if h.send(conn, user, e) != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Debug("Ping failed", "user_id", user.ID, "error", err)
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, user chat.User, e event.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	frame := outboundFrame{
		Type:      string(e.Name()),
		Data:      e.Payload(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := conn.WriteJSON(frame); err != nil {
		h.log.Error("Failed to push event to websocket",
			"user_id", user.ID,
			"event", e.Name(),
			"error", err)
		return err
	}
	return nil
}
