package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/aidiary/internal/agent"
	"github.com/ashureev/aidiary/internal/api"
	"github.com/ashureev/aidiary/internal/identity"
	"github.com/ashureev/aidiary/internal/store"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// Frame types.
const (
	TypeMessage = "message"
	TypePing    = "ping"
	TypeReply   = "reply"
	TypePong    = "pong"
	TypeError   = "error"
)

// ChatService runs one chat turn.
type ChatService interface {
	Chat(ctx context.Context, userID, channel, message string) (*agent.TurnResult, error)
}

// clientFrame is a frame sent by the browser.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// serverFrame is a frame sent to the browser. Reply frames carry the chat response inline.
type serverFrame struct {
	Type string `json:"type"`
	*agent.ChatResponse
	Error string `json:"error,omitempty"`
}

// Handler upgrades /ws/chat requests and runs turns for each message frame.
type Handler struct {
	chat          ChatService
	registry      *Registry
	users         store.UserStore
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket chat handler. users may be nil.
func NewHandler(chat ChatService, registry *Registry, users store.UserStore, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		chat:          chat,
		registry:      registry,
		users:         users,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		tabID = uuid.NewString()
	}
	slog.Info("Chat socket request", "user_id", userID, "tab_id", tabID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(readLimit)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.registry.Register(userID, tabID, ws)
	defer h.registry.Unregister(userID, tabID, ws)

	h.readLoop(r.Context(), ws, userID)
	slog.Info("Chat socket ended", "user_id", userID, "tab_id", tabID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop handles frames in order; a turn finishes before the next frame is read.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if !h.write(ctx, ws, serverFrame{Type: TypeError, Error: "invalid frame"}) {
				return
			}
			continue
		}

		var out serverFrame
		switch frame.Type {
		case TypePing:
			out = serverFrame{Type: TypePong}
		case TypeMessage:
			out = h.turn(ctx, userID, frame.Content)
		default:
			out = serverFrame{Type: TypeError, Error: "unknown frame type"}
		}
		if !h.write(ctx, ws, out) {
			return
		}

		if h.users != nil {
			go h.touch(userID)
		}
	}
}

func (h *Handler) turn(ctx context.Context, userID, content string) serverFrame {
	res, err := h.chat.Chat(ctx, userID, agent.ChannelWebSocket, content)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return serverFrame{Type: TypeError, Error: "message is required"}
	case errors.Is(err, agent.ErrUnauthenticated):
		return serverFrame{Type: TypeError, Error: "User not authenticated"}
	case err != nil:
		slog.Error("Chat socket turn failed", "user_id", userID, "error", err)
		return serverFrame{Type: TypeError, Error: "failed to process message"}
	}
	resp := agent.NewChatResponse(res)
	return serverFrame{Type: TypeReply, ChatResponse: &resp}
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, v serverFrame) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal socket frame", "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return false
	}
	return true
}

func (h *Handler) touch(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.users.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
		slog.Warn("Failed to update last seen", "error", err)
	}
}
