package store

import "github.com/charlesng35/tidylink/internal/notify"

// NotificationPage is one fetched page of normalised notifications.
type NotificationPage struct {
	Items    []notify.Notification
	Count    int64
	Next     string
	Previous string
}

// NotificationsState is a snapshot of the notification list.
type NotificationsState struct {
	Items    []notify.Notification
	Count    int64
	Next     string
	Previous string
	Loading  bool
	Err      error
}

type notificationState struct {
	items    []notify.Notification
	count    int64
	next     string
	previous string
	loading  bool
	err      error
}

func (n *notificationState) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range n.items {
		if n.items[i].ID == id {
			return i
		}
	}
	return -1
}

// BeginNotificationsLoad flags the notification list as loading.
func (s *Store) BeginNotificationsLoad() {
	s.mu.Lock()
	s.notifications.loading = true
	s.notifications.err = nil
	s.mu.Unlock()

	s.events.publish(Event{Type: EventNotificationsLoading})
}

// FailNotificationsLoad records a fetch failure while keeping the current list.
func (s *Store) FailNotificationsLoad(err error) {
	s.mu.Lock()
	s.notifications.loading = false
	s.notifications.err = err
	s.mu.Unlock()

	s.events.publish(Event{Type: EventNotificationsFailed, Err: err})
}

// ReplaceNotifications stores a freshly fetched page. When the page carries no
// count the number of items is used.
func (s *Store) ReplaceNotifications(page NotificationPage) {
	items := append([]notify.Notification(nil), page.Items...)
	count := page.Count
	if count == 0 {
		count = int64(len(items))
	}

	s.mu.Lock()
	s.notifications = notificationState{
		items:    items,
		count:    count,
		next:     page.Next,
		previous: page.Previous,
	}
	s.mu.Unlock()

	s.events.publish(Event{Type: EventNotificationsReplaced})
}

// UpsertNotification replaces the notification with the same id, or prepends it
// when it is new. Unread new notifications bump the unread counter.
func (s *Store) UpsertNotification(n notify.Notification) {
	s.mu.Lock()
	idx := s.notifications.indexOf(n.ID)
	bumped := false
	if idx >= 0 {
		s.notifications.items[idx] = n
	} else {
		s.notifications.items = append([]notify.Notification{n}, s.notifications.items...)
		s.notifications.count++
		if !n.IsRead {
			s.notificationUnread++
			bumped = true
		}
	}
	counters := s.countersLocked()
	s.mu.Unlock()

	stored := n
	event := Event{Type: EventNotificationUpserted, NotificationID: n.ID, Notification: &stored}
	if bumped {
		s.publishUnread(counters, event)
		return
	}
	s.events.publish(event)
}

// MarkNotificationRead flips one notification to read and decrements the unread
// counter, never below zero.
func (s *Store) MarkNotificationRead(id string) {
	s.mu.Lock()
	if idx := s.notifications.indexOf(id); idx >= 0 {
		s.notifications.items[idx].IsRead = true
	}
	if s.notificationUnread > 0 {
		s.notificationUnread--
	}
	counters := s.countersLocked()
	s.mu.Unlock()

	s.publishUnread(counters, Event{Type: EventNotificationsRead, NotificationID: id})
}

// MarkAllNotificationsRead flips every notification to read and zeroes the counter.
func (s *Store) MarkAllNotificationsRead() {
	s.mu.Lock()
	for i := range s.notifications.items {
		s.notifications.items[i].IsRead = true
	}
	s.notificationUnread = 0
	counters := s.countersLocked()
	s.mu.Unlock()

	s.publishUnread(counters, Event{Type: EventNotificationsRead})
}

// Notifications returns a copy of the stored notifications.
func (s *Store) Notifications() []notify.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notify.Notification{}, s.notifications.items...)
}

// NotificationsState returns the list together with paging and load state.
func (s *Store) NotificationsState() NotificationsState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.notifications
	return NotificationsState{
		Items:    append([]notify.Notification{}, n.items...),
		Count:    n.count,
		Next:     n.next,
		Previous: n.previous,
		Loading:  n.loading,
		Err:      n.err,
	}
}
