// Package socket serves chat turns over WebSocket.
package socket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks open chat connections per user and tab.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the open connection for a user and tab.
func (m *Registry) Get(userID, tabID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tabs, ok := m.active[userID]; ok {
		return tabs[tabID]
	}
	return nil
}

// Count returns the number of open connections for a user.
func (m *Registry) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// Register adds a connection. A previous connection for the same tab is closed.
func (m *Registry) Register(userID, tabID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][tabID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	m.active[userID][tabID] = conn
	slog.Info("Chat socket registered", "user_id", userID, "tab_id", tabID)
}

// Unregister removes conn if it is still the registered connection for the tab.
func (m *Registry) Unregister(userID, tabID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tabs, ok := m.active[userID]; ok {
		if current, exists := tabs[tabID]; exists && current == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat socket unregistered", "user_id", userID, "tab_id", tabID)
		}
	}
}

// CloseAll closes every open connection. Used on shutdown.
func (m *Registry) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, tabs := range m.active {
		for tabID, conn := range tabs {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			slog.Info("Chat socket closed", "user_id", userID, "tab_id", tabID)
		}
	}
	m.active = make(map[string]map[string]*websocket.Conn)
}
