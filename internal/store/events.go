package store

import (
	"sync"

	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/internal/notify"
)

// EventType names a store change.
type EventType string

const (
	EventMessageAdded          EventType = "message.added"
	EventMessagesReplaced      EventType = "messages.replaced"
	EventMessagesRead          EventType = "messages.read"
	EventChatLoading           EventType = "chat.loading"
	EventChatFailed            EventType = "chat.failed"
	EventNotificationsLoading  EventType = "notifications.loading"
	EventNotificationsReplaced EventType = "notifications.replaced"
	EventNotificationsFailed   EventType = "notifications.failed"
	EventNotificationUpserted  EventType = "notification.upserted"
	EventNotificationsRead     EventType = "notifications.read"
	EventUnreadChanged         EventType = "unread.changed"
)

// Event describes a committed store mutation.
type Event struct {
	Type           EventType
	ChatID         string
	MessageID      string
	NotificationID string
	Message        *chat.Message
	Notification   *notify.Notification
	Err            error
	// Unread carries both counters after EventUnreadChanged.
	Unread Counters
}

// Counters is a snapshot of the two unread counters.
type Counters struct {
	Messages      int
	Notifications int
}

type subscriber struct {
	ch chan Event
}

type broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscriber]struct{})}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (b *broadcaster) publish(events ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		for _, event := range events {
			select {
			case sub.ch <- event:
			default:
				// Drop if buffer full so one reader cannot stall the store.
			}
		}
	}
}
