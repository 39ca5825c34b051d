package realtime

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/pkg/logger"
)

// Manager keeps at most one live Client per chat. Opening a chat does not close
// the others; callers disconnect chats they no longer view.
type Manager struct {
	cfg  Config
	sink Sink
	log  *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewManager builds a manager dialing with cfg and delivering into sink.
func NewManager(cfg Config, sink Sink) *Manager {
	return &Manager{
		cfg:     cfg,
		sink:    sink,
		log:     logger.WithModule("realtime"),
		clients: make(map[string]*Client),
	}
}

// Connect returns the live client of chatID, dialing one when none exists.
func (m *Manager) Connect(ctx context.Context, chatID, token string) (*Client, error) {
	if existing, ok := m.Client(chatID); ok {
		return existing, nil
	}

	client, err := Connect(ctx, m.cfg, m.sink, chatID, token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.clients[chatID]; ok && existing.State() != StateClosed {
		m.mu.Unlock()
		// Lost a concurrent dial for the same chat.
		_ = client.Disconnect()
		return existing, nil
	}
	m.clients[chatID] = client
	m.mu.Unlock()

	return client, nil
}

// Client returns the live client of chatID.
func (m *Manager) Client(chatID string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[chatID]
	if !ok {
		return nil, false
	}
	if client.State() == StateClosed {
		delete(m.clients, chatID)
		return nil, false
	}
	return client, true
}

// Send posts content on the chat's socket; ErrNotConnected when it is not open.
func (m *Manager) Send(chatID, content string) error {
	client, ok := m.Client(chatID)
	if !ok {
		m.log.Warn("send skipped: chat not connected", zap.String("chat_id", chatID))
		return ErrNotConnected
	}
	return client.Send(content)
}

// ChatIDs lists chats with a live client, sorted.
func (m *Manager) ChatIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.clients))
	for id, client := range m.clients {
		if client.State() != StateClosed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Disconnect closes and forgets the client of chatID.
func (m *Manager) Disconnect(chatID string) error {
	m.mu.Lock()
	client := m.clients[chatID]
	delete(m.clients, chatID)
	m.mu.Unlock()

	return client.Disconnect()
}

// Close disconnects every chat.
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	var errs error
	for _, client := range clients {
		errs = multierr.Append(errs, client.Disconnect())
	}
	return errs
}
