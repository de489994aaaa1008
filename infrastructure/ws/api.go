package ws

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type api struct {
	log      *slog.Logger
	sessions ISessions
	history  IHistory
}

type conversationResponse struct {
	ID            string   `json:"id"`
	Participants  []string `json:"participants"`
	LastMessageID string   `json:"lastMessageId,omitempty"`
	LastActivity  string   `json:"lastActivity"`
}

type messagesResponse struct {
	Messages []map[string]any `json:"messages"`
	Cursor   *string          `json:"cursor"`
}

// authenticate resolves the bearer token once and stores the user in the request context.
func authenticate(authenticator contract.IAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), auth.BearerFromRequest(r))
			if err != nil {
				respondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) presence(w http.ResponseWriter, r *http.Request) {
	query := chat.PresenceQuery{UserID: chat.UserID(chi.URLParam(r, "userID"))}
	if err := chat.ValidateIDs(query); err != nil {
		respondError(w, err)
		return
	}
	presence, err := a.sessions.GetPresence(r.Context(), query.UserID)
	if err != nil {
		a.log.Debug("Presence lookup failed", "user_id", query.UserID, "error", err)
		respondError(w, err)
		return
	}
	body := map[string]any{
		"userId": string(presence.UserID),
		"online": presence.Online,
	}
	if !presence.LastSeen.IsZero() {
		body["lastSeen"] = presence.LastSeen.UTC().Format(time.RFC3339Nano)
	}
	respondJSON(w, http.StatusOK, body)
}

func (a *api) conversations(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	conversations, err := a.history.ListConversations(r.Context(), user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lo.Map(conversations, func(c chat.Conversation, _ int) conversationResponse {
		return conversationResponse{
			ID:            string(c.ID),
			Participants:  []string{string(c.Participants[0]), string(c.Participants[1])},
			LastMessageID: string(c.LastMessageID),
			LastActivity:  c.LastActivity.UTC().Format(time.RFC3339Nano),
		}
	}))
}

// messages pages through a conversation with ?cursor= and ?limit=.
func (a *api) messages(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	query := chat.HistoryQuery{
		ConversationID: chat.ConversationID(chi.URLParam(r, "conversationID")),
		ReaderID:       user.ID,
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		query.Cursor = lo.ToPtr(cursor)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, errors.ErrValidation)
			return
		}
		query.Limit = limit
	}

	messages, cursor, err := a.history.GetMessages(r.Context(), query)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messagesResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) map[string]any {
			return event.MessagePayload(m)
		}),
		Cursor: cursor,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	public := errors.Public(err)
	status := http.StatusInternalServerError
	switch errors.CodeOf(public) {
	case errors.CodeValidation:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeForbidden:
		status = http.StatusForbidden
	case errors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case errors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{
		"code":  string(errors.CodeOf(public)),
		"error": public.Error(),
	})
}
