// Package store holds a session's chat buckets, notification list and unread
// counters. Every mutation goes through a Store method; readers get copies.
package store

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/pkg/logger"
	"github.com/charlesng35/tidylink/pkg/metrics"
)

// ChatState is a snapshot of one chat bucket.
type ChatState struct {
	ChatID  string
	Items   []chat.Message
	Loading bool
	Err     error
}

type bucket struct {
	items   []chat.Message
	index   map[string]int
	loading bool
	err     error

	// loads counts fetches in flight; inflight holds the ids inserted while any
	// of them runs so a snapshot taken earlier cannot drop them.
	loads    int
	inflight []string
}

func newBucket() *bucket {
	return &bucket{index: make(map[string]int)}
}

func (b *bucket) add(msg chat.Message) bool {
	if _, exists := b.index[msg.ID]; exists {
		return false
	}
	b.index[msg.ID] = len(b.items)
	b.items = append(b.items, msg)
	return true
}

// Store is the in-memory state container of one authenticated session.
type Store struct {
	mu    sync.RWMutex
	chats map[string]*bucket

	notifications notificationState

	messageUnread      int
	notificationUnread int

	events *broadcaster
	log    *zap.Logger
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		chats:  make(map[string]*bucket),
		events: newBroadcaster(),
		log:    logger.WithModule("store"),
	}
}

// Subscribe registers a change listener. Events are delivered without blocking;
// a full buffer drops events for that subscriber. Call cancel to release it.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.subscribe(buffer)
}

func (s *Store) bucketLocked(chatID string) *bucket {
	b, ok := s.chats[chatID]
	if !ok {
		b = newBucket()
		s.chats[chatID] = b
	}
	return b
}

// InsertMessage appends msg to its chat bucket unless a message with the same id is
// already stored. It reports whether the message was added.
func (s *Store) InsertMessage(msg chat.Message) bool {
	s.mu.Lock()
	b := s.bucketLocked(msg.ChatID)
	added := b.add(msg)
	if added && b.loads > 0 {
		b.inflight = append(b.inflight, msg.ID)
	}
	s.mu.Unlock()

	if !added {
		metrics.DuplicateMessages.Inc()
		s.log.Debug("duplicate message ignored",
			zap.String("chat_id", msg.ChatID),
			zap.String("message_id", msg.ID),
		)
		return false
	}

	stored := msg
	s.events.publish(Event{Type: EventMessageAdded, ChatID: msg.ChatID, MessageID: msg.ID, Message: &stored})
	return true
}

// ReplaceMessages rebuilds a bucket from a full fetch. Duplicate ids keep their first
// occurrence. Messages inserted since BeginChatLoad that the fetch does not
// contain are kept after the fetched items, in arrival order. Loading and error
// state are cleared once no other fetch of the chat is running.
func (s *Store) ReplaceMessages(chatID string, items []chat.Message) {
	b := newBucket()
	for _, msg := range items {
		msg.ChatID = chatID
		b.add(msg)
	}

	s.mu.Lock()
	if old, ok := s.chats[chatID]; ok {
		for _, id := range old.inflight {
			if idx, found := old.index[id]; found {
				b.add(old.items[idx])
			}
		}
		b.loads = old.loads - 1
		if b.loads > 0 {
			b.loading = true
			b.inflight = old.inflight
		} else {
			b.loads = 0
		}
	}
	s.chats[chatID] = b
	s.mu.Unlock()

	s.events.publish(Event{Type: EventMessagesReplaced, ChatID: chatID})
}

// BeginChatLoad flags a chat bucket as loading and clears its previous error.
func (s *Store) BeginChatLoad(chatID string) {
	s.mu.Lock()
	b := s.bucketLocked(chatID)
	b.loads++
	b.loading = true
	b.err = nil
	s.mu.Unlock()

	s.events.publish(Event{Type: EventChatLoading, ChatID: chatID})
}

// FailChatLoad records a fetch failure on a single chat bucket, keeping its items.
func (s *Store) FailChatLoad(chatID string, err error) {
	s.mu.Lock()
	b := s.bucketLocked(chatID)
	if b.loads > 0 {
		b.loads--
	}
	if b.loads == 0 {
		b.inflight = nil
	}
	b.loading = b.loads > 0
	b.err = err
	s.mu.Unlock()

	s.events.publish(Event{Type: EventChatFailed, ChatID: chatID, Err: err})
}

// MarkMessageRead decrements the message unread counter, never below zero, and
// flips the matching local message to read in every chat that holds the id.
func (s *Store) MarkMessageRead(messageID string) {
	s.mu.Lock()
	var chatIDs []string
	for id, b := range s.chats {
		if idx, ok := b.index[messageID]; ok {
			b.items[idx].IsRead = true
			chatIDs = append(chatIDs, id)
		}
	}
	if s.messageUnread > 0 {
		s.messageUnread--
	}
	counters := s.countersLocked()
	s.mu.Unlock()

	sort.Strings(chatIDs)
	events := make([]Event, 0, len(chatIDs)+1)
	for _, id := range chatIDs {
		events = append(events, Event{Type: EventMessagesRead, ChatID: id, MessageID: messageID})
	}
	if len(events) == 0 {
		events = append(events, Event{Type: EventMessagesRead, MessageID: messageID})
	}
	s.publishUnread(counters, events...)
}

// MarkChatAllRead marks every message of the chat as read and resets the message
// unread counter. Call it once the server confirmed the operation.
func (s *Store) MarkChatAllRead(chatID string) {
	s.mu.Lock()
	if b, ok := s.chats[chatID]; ok {
		markRead(b.items, len(b.items))
	}
	s.messageUnread = 0
	counters := s.countersLocked()
	s.mu.Unlock()

	s.publishUnread(counters, Event{Type: EventMessagesRead, ChatID: chatID})
}

// MarkChatAllReadLocal flips every message of the chat to read without touching the
// counters.
func (s *Store) MarkChatAllReadLocal(chatID string) {
	s.mu.Lock()
	b, ok := s.chats[chatID]
	if ok {
		markRead(b.items, len(b.items))
	}
	s.mu.Unlock()

	if ok {
		s.events.publish(Event{Type: EventMessagesRead, ChatID: chatID})
	}
}

// MarkMessagesReadUpTo applies a read receipt: every message up to and including
// lastReadID, in bucket order, becomes read. Unknown ids change nothing.
func (s *Store) MarkMessagesReadUpTo(chatID, lastReadID string) bool {
	s.mu.Lock()
	b, ok := s.chats[chatID]
	var idx int
	if ok {
		idx, ok = b.index[lastReadID]
	}
	if ok {
		markRead(b.items, idx+1)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.events.publish(Event{Type: EventMessagesRead, ChatID: chatID, MessageID: lastReadID})
	return true
}

func markRead(items []chat.Message, upTo int) {
	for i := 0; i < upTo && i < len(items); i++ {
		items[i].IsRead = true
	}
}

// SetMessageUnread stores an authoritative message unread count.
func (s *Store) SetMessageUnread(n int) {
	s.mu.Lock()
	s.messageUnread = clamp(n)
	counters := s.countersLocked()
	s.mu.Unlock()

	s.publishUnread(counters)
}

// SetNotificationUnread stores an authoritative notification unread count.
func (s *Store) SetNotificationUnread(n int) {
	s.mu.Lock()
	s.notificationUnread = clamp(n)
	counters := s.countersLocked()
	s.mu.Unlock()

	s.publishUnread(counters)
}

// Messages returns a copy of the chat's messages in insertion order.
func (s *Store) Messages(chatID string) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.chats[chatID]
	if !ok {
		return []chat.Message{}
	}
	return append([]chat.Message(nil), b.items...)
}

// Chat returns a snapshot of a chat bucket including loading and error state.
func (s *Store) Chat(chatID string) ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := ChatState{ChatID: chatID, Items: []chat.Message{}}
	if b, ok := s.chats[chatID]; ok {
		state.Items = append(state.Items, b.items...)
		state.Loading = b.loading
		state.Err = b.err
	}
	return state
}

// MessageUnread returns the message unread counter.
func (s *Store) MessageUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageUnread
}

// NotificationUnread returns the notification unread counter.
func (s *Store) NotificationUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationUnread
}

// Unread returns both counters.
func (s *Store) Unread() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countersLocked()
}

func (s *Store) countersLocked() Counters {
	return Counters{Messages: s.messageUnread, Notifications: s.notificationUnread}
}

func (s *Store) publishUnread(counters Counters, events ...Event) {
	metrics.UnreadCount.WithLabelValues("messages").Set(float64(counters.Messages))
	metrics.UnreadCount.WithLabelValues("notifications").Set(float64(counters.Notifications))
	events = append(events, Event{Type: EventUnreadChanged, Unread: counters})
	s.events.publish(events...)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
