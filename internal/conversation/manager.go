// Package conversation manages chat sessions and their message history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/store"
)

// DefaultHistoryLimit is the number of messages RecentHistory returns by default.
const DefaultHistoryLimit = 10

var (
	// ErrInvalidRole is returned when a message role is neither user nor assistant.
	ErrInvalidRole = errors.New("invalid message role")
	// ErrSessionNotFound is returned for missing sessions and sessions owned by someone else.
	ErrSessionNotFound = errors.New("chat session not found")
)

// Manager owns session lifecycle and history reads for the chat pipeline.
type Manager struct {
	store        store.ChatHistoryStore
	historyLimit int
	now          func() time.Time
}

// NewManager creates a manager. historyLimit <= 0 uses DefaultHistoryLimit.
func NewManager(st store.ChatHistoryStore, historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Manager{store: st, historyLimit: historyLimit, now: time.Now}
}

// CurrentSession returns the user's current session, creating one if the user has none.
func (m *Manager) CurrentSession(ctx context.Context, userID string) (*domain.ChatSession, error) {
	id, err := m.store.CurrentSessionID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if id != "" {
		session, err := m.store.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load current session: %w", err)
		}
		if session != nil && session.UserID == userID {
			return session, nil
		}
	}

	sessions, err := m.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) > 0 {
		latest := sessions[0]
		if err := m.store.SetCurrentSessionID(ctx, userID, latest.ID); err != nil {
			return nil, fmt.Errorf("set current session: %w", err)
		}
		return &latest, nil
	}

	return m.NewSession(ctx, userID, "")
}

// NewSession creates a session and makes it the user's current one.
func (m *Manager) NewSession(ctx context.Context, userID, title string) (*domain.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	now := m.now()
	session := &domain.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := m.store.SetCurrentSessionID(ctx, userID, session.ID); err != nil {
		return nil, fmt.Errorf("set current session: %w", err)
	}
	return session, nil
}

// Append stores a message and bumps the session's activity time.
func (m *Manager) Append(ctx context.Context, sessionID, role, text string) (*domain.ChatMessage, error) {
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	msg := &domain.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   text,
		CreatedAt: m.now(),
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := m.store.TouchSession(ctx, sessionID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	return msg, nil
}

// RecentHistory returns up to maxMessages of the newest messages, oldest first.
func (m *Manager) RecentHistory(ctx context.Context, sessionID string, maxMessages int) ([]domain.ChatMessage, error) {
	if maxMessages <= 0 {
		maxMessages = m.historyLimit
	}
	msgs, err := m.store.ListMessages(ctx, sessionID, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// ListSessions returns the user's sessions, newest first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	sessions, err := m.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Messages returns the full history of a session the user owns.
func (m *Manager) Messages(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := m.owned(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := m.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return msgs, nil
}

// SwitchSession makes sessionID the user's current session.
func (m *Manager) SwitchSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	session, err := m.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetCurrentSessionID(ctx, userID, sessionID); err != nil {
		return nil, fmt.Errorf("set current session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session the user owns together with its messages.
func (m *Manager) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := m.owned(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) owned(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
