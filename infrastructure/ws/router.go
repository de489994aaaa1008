package ws

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// IHistory browses conversations on behalf of an authenticated user.
type IHistory interface {
	ListConversations(ctx context.Context, userID chat.UserID) ([]chat.Conversation, error)
	GetMessages(ctx context.Context, query chat.HistoryQuery) ([]chat.Message, *string, error)
}

// NewRouter serves the websocket endpoint and a small JSON API next to it.
func NewRouter(log *slog.Logger, handler *Handler, authenticator contract.IAuthenticator, history IHistory) http.Handler {
	api := &api{log: log, sessions: handler.sessions, history: history}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/ws", handler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.health)
		r.Group(func(r chi.Router) {
			r.Use(authenticate(authenticator))
			r.Get("/presence/{userID}", api.presence)
			r.Get("/conversations", api.conversations)
			r.Get("/conversations/{conversationID}/messages", api.messages)
		})
	})
	return r
}

// requestLogger logs every request through slog, at debug level for the noisy health probe.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if r.URL.Path == "/api/health" {
				level = slog.LevelDebug
			}
			log.Log(r.Context(), level, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
