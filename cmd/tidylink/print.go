package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/internal/notify"
)

func printNotification(w io.Writer, n notify.Notification) {
	marker := "*"
	if n.IsRead {
		marker = " "
	}
	fmt.Fprintf(w, "%s %-8s %s: %s", marker, n.Category, n.Title, n.Message)
	if !n.CreatedAt.IsZero() {
		fmt.Fprintf(w, " (%s)", n.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)
}

func printMessage(w io.Writer, m chat.Message) {
	who := m.SenderName
	if who == "" {
		who = string(m.SenderRole)
	}
	stamp := ""
	if !m.SentAt.IsZero() {
		stamp = m.SentAt.Local().Format(time.TimeOnly) + " "
	}
	fmt.Fprintf(w, "%s[%s] %s\n", stamp, who, m.Content)
}
