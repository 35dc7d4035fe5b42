package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/aidiary/internal/api"
	"github.com/ashureev/aidiary/internal/conversation"
	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

const unauthenticatedMessage = "User not authenticated"

// Handler serves the chat HTTP endpoints.
type Handler struct {
	service     *Service
	sessions    *conversation.Manager
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a chat handler. A nil limiter disables rate limiting.
func NewHandler(service *Service, sessions *conversation.Manager, limiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		service:     service,
		sessions:    sessions,
		rateLimiter: limiter,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Post("/api/chat/stream", h.HandleStream)
	r.Get("/api/chat/sessions", h.ListSessions)
	r.Post("/api/chat/sessions", h.CreateSession)
	r.Get("/api/chat/sessions/{id}/messages", h.GetMessages)
	r.Post("/api/chat/sessions/{id}/switch", h.SwitchSession)
	r.Delete("/api/chat/sessions/{id}", h.DeleteSession)
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, msg, ok := h.readTurn(w, r)
	if !ok {
		return
	}

	res, err := h.service.Chat(r.Context(), userID, ChannelHTTP, msg)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, NewChatResponse(res))
}

// HandleStream handles POST /api/chat/stream. The turn is framed as SSE events:
// status, then message (or error), then done.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID, msg, ok := h.readTurn(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeSSE(w, "status", `{"status":"thinking"}`); err != nil {
		slog.Warn("failed to write SSE status event", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	res, err := h.service.Chat(r.Context(), userID, ChannelStream, msg)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		if writeErr := writeSSE(w, "error", string(data)); writeErr != nil {
			slog.Warn("failed to write SSE error event", "error", writeErr)
		}
		flusher.Flush()
		return
	}

	data, err := json.Marshal(NewChatResponse(res))
	if err != nil {
		slog.Error("failed to marshal chat response", "error", err)
		return
	}
	if err := writeSSE(w, "message", string(data)); err != nil {
		slog.Warn("failed to write SSE message event", "error", err, "user_id", userID)
		return
	}
	if err := writeSSE(w, "done", fmt.Sprintf(`{"session_id":%q}`, res.SessionID)); err != nil {
		slog.Warn("failed to write SSE done event", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()
}

// readTurn authenticates, rate-limits and decodes a chat request. It writes the
// error response itself and returns ok=false when the request cannot proceed.
func (h *Handler) readTurn(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return "", "", false
	}

	// Keyed by user so clients cannot bypass throttling by switching sessions.
	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return "", "", false
	}

	var req ChatRequest
	if err := api.DecodeJSON(w, r, h.maxBodySize, false, &req); err != nil {
		api.WriteDecodeError(w, err)
		return "", "", false
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return "", "", false
	}

	slog.Info("Chat request",
		"user_id", userID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message))
	return userID, req.Message, true
}

func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
	case errors.Is(err, ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, "message is required")
	default:
		slog.Error("Chat turn failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to process message")
	}
}

// ListSessions handles GET /api/chat/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return
	}
	sessions, err := h.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list chat sessions", "user_id", userID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	api.JSON(w, http.StatusOK, sessions)
}

// CreateSession handles POST /api/chat/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return
	}

	var req CreateSessionRequest
	if err := api.DecodeJSON(w, r, h.maxBodySize, true, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	session, err := h.sessions.NewSession(r.Context(), userID, req.Title)
	if err != nil {
		slog.Error("Failed to create chat session", "user_id", userID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	api.JSON(w, http.StatusCreated, session)
}

// GetMessages handles GET /api/chat/sessions/{id}/messages.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return
	}
	msgs, err := h.sessions.Messages(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, userID, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	api.JSON(w, http.StatusOK, msgs)
}

// SwitchSession handles POST /api/chat/sessions/{id}/switch.
func (h *Handler) SwitchSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return
	}
	session, err := h.sessions.SwitchSession(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/chat/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, unauthenticatedMessage)
		return
	}
	if err := h.sessions.DeleteSession(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, conversation.ErrSessionNotFound) {
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	slog.Error("Chat session request failed", "user_id", userID, "error", err)
	api.Error(w, http.StatusInternalServerError, "failed to load session")
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
