package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/app/reconcile"
	"github.com/charlesng35/tidylink/internal/realtime"
	"github.com/charlesng35/tidylink/internal/store"
	"github.com/charlesng35/tidylink/pkg/logger"
)

func (e *env) notifications(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	fs.SetOutput(e.stdout)
	page := fs.Int("page", 0, "Page number; 0 fetches the unpaged list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var params url.Values
	if *page > 0 {
		params = url.Values{"page": {strconv.Itoa(*page)}}
	}

	result, err := e.session.Notifications.Fetch(ctx, params)
	if err != nil {
		return err
	}
	for _, n := range result.Items {
		printNotification(e.stdout, n)
	}
	fmt.Fprintf(e.stdout, "%d of %d\n", len(result.Items), result.Count)
	if result.Next != "" {
		fmt.Fprintf(e.stdout, "next: %s\n", result.Next)
	}
	return nil
}

func (e *env) unread(ctx context.Context) error {
	err := e.session.RefreshCounters(ctx)
	counters := e.session.Store.Unread()
	fmt.Fprintf(e.stdout, "notifications: %d\nmessages: %d\n", counters.Notifications, counters.Messages)
	return err
}

func (e *env) markRead(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mark-read", flag.ContinueOnError)
	fs.SetOutput(e.stdout)
	all := fs.Bool("all", false, "Mark every notification read")
	message := fs.String("message", "", "Mark one chat message read instead of a notification")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *message != "" {
		if err := e.session.Messages.MarkMessageRead(ctx, *message); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "message %s read\n", *message)
		return nil
	}

	if *all {
		if err := e.session.Notifications.MarkAllRead(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, "all notifications read")
		return nil
	}
	if fs.NArg() != 1 {
		return errors.New("mark-read: expected one notification id or --all")
	}
	if err := e.session.Notifications.MarkRead(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "notification %s read\n", fs.Arg(0))
	return nil
}

// chat opens one chat, prints its history and every pushed message, and sends
// each non-empty stdin line. "/read" marks the chat read and "/typing" toggles
// the typing indicator. It returns when stdin is exhausted or ctx ends.
func (e *env) chat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(e.stdout)
	markRead := fs.Bool("mark-read", false, "Mark the chat read once its history is loaded")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("chat: expected a chat id")
	}
	chatID := fs.Arg(0)

	events, unsubscribe := e.session.Store.Subscribe(64)
	defer unsubscribe()

	history, err := e.session.OpenChat(ctx, chatID)
	if err != nil && !errors.Is(err, realtime.ErrMissingToken) {
		return err
	}
	for i := range history {
		printMessage(e.stdout, history[i])
	}
	if err != nil {
		fmt.Fprintln(e.stdout, "no token: live updates disabled, messages go over REST")
	}

	log := logger.WithModule("cli")
	readChat := func() {
		if err := e.session.MarkChatRead(ctx, chatID); err != nil {
			log.Warn("mark chat read failed", zap.String("chat_id", chatID), zap.Error(err))
			fmt.Fprintf(e.stdout, "mark read failed: %v\n", err)
			return
		}
		fmt.Fprintln(e.stdout, "chat read")
	}
	if *markRead {
		readChat()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(e.stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	typing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Type == store.EventMessageAdded && ev.ChatID == chatID && ev.Message != nil {
				printMessage(e.stdout, *ev.Message)
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/read":
				readChat()
				continue
			case "/typing":
				typing = !typing
				if err := e.session.SetTyping(chatID, typing); err != nil {
					fmt.Fprintf(e.stdout, "typing failed: %v\n", err)
				}
				continue
			}
			if err := e.session.Send(ctx, chatID, line); err != nil {
				log.Warn("send failed", zap.String("chat_id", chatID), zap.Error(err))
				fmt.Fprintf(e.stdout, "send failed: %v\n", err)
			}
		}
	}
}

// watch loads notifications and counters, opens the notification socket and the
// given chats, then streams store events while the reconciler refreshes
// counters on schedule.
func (e *env) watch(ctx context.Context, chatIDs []string) error {
	events, unsubscribe := e.session.Store.Subscribe(128)
	defer unsubscribe()

	log := logger.WithModule("cli")
	if _, err := e.session.Notifications.Fetch(ctx, nil); err != nil {
		log.Warn("initial notification load failed", zap.Error(err))
	}
	if err := e.session.OpenNotifications(ctx); err != nil {
		log.Warn("notification socket not opened", zap.Error(err))
	}
	for _, chatID := range chatIDs {
		if _, err := e.session.OpenChat(ctx, chatID); err != nil {
			log.Warn("open chat failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	if e.cfg.Reconcile.Enabled {
		r := reconcile.New(e.session, e.session.Notifications,
			reconcile.WithUnreadSchedule(e.cfg.Reconcile.Unread),
			reconcile.WithNotificationSchedule(e.cfg.Reconcile.Notifications),
		)
		if err := r.RunOnce(ctx); err != nil {
			log.Warn("initial reconcile failed", zap.Error(err))
		}
		if err := r.Start(); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
		defer func() { <-r.Stop().Done() }()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			printEvent(e.stdout, ev)
		}
	}
}

func printEvent(w io.Writer, ev store.Event) {
	switch ev.Type {
	case store.EventMessageAdded:
		if ev.Message != nil {
			printMessage(w, *ev.Message)
		}
	case store.EventNotificationUpserted:
		if ev.Notification != nil {
			printNotification(w, *ev.Notification)
		}
	case store.EventNotificationsReplaced:
		fmt.Fprintln(w, "notifications reloaded")
	case store.EventUnreadChanged:
		fmt.Fprintf(w, "unread: notifications=%d messages=%d\n", ev.Unread.Notifications, ev.Unread.Messages)
	case store.EventChatFailed, store.EventNotificationsFailed:
		fmt.Fprintf(w, "%s: %v\n", ev.Type, ev.Err)
	}
}
