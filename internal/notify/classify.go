package notify

import (
	"fmt"
	"regexp"
	"strings"
)

const snippetLength = 120

// Field candidates, read in order; the first truthy value wins.
var (
	idFields          = []string{"id", "pk", "uuid", "notification_id"}
	hintFields        = []string{"category", "type", "kind", "verb"}
	createdAtFields   = []string{"created_at", "createdAt", "timestamp", "time", "date"}
	actorFields       = []string{"actor_name", "actor.name", "sender_name", "sender.full_name", "sender.name", "user.full_name", "user.name", "from_user", "source_name"}
	targetTitleFields = []string{"target_title", "job_title", "job.title", "chat.title", "object_title"}
	targetTypeFields  = []string{"target_type", "resource_type"}
	targetIDFields    = []string{"target_id", "resource_id", "booking_id", "booking.id", "job_id", "chat_id"}
	messageIDFields   = []string{"message_id", "message.id", "object_id"}
	titleFields       = []string{"title", "subject", "heading", "message_title"}
	bodyFields        = []string{"message", "body", "content", "text", "description", "detail", "extra.message"}
	searchFields      = []string{"title", "subject", "heading", "message", "body", "content"}
	statusFields      = []string{"booking_status", "status", "status_code", "booking.status", "extra.status"}
	eventFields       = []string{"event", "action", "verb"}
)

type keywordRule struct {
	pattern  *regexp.Regexp
	category Category
}

// keywordRules upgrade the raw hint; order matters, message beats job beats booking.
var keywordRules = []keywordRule{
	{regexp.MustCompile(`message|chat`), CategoryMessage},
	{regexp.MustCompile(`job`), CategoryJob},
	{regexp.MustCompile(`book|booking|reservation`), CategoryBooking},
	{regexp.MustCompile(`alert|notification`), CategoryAlert},
}

var (
	sentMessagePattern = regexp.MustCompile(`(?i)^(.*?)\s+sent you a message`)
	bookingTextPattern = regexp.MustCompile(`\b(book|booking|reservation|confirmed|payment received|paid)\b`)

	paidPattern        = regexp.MustCompile(`paid|payment (successful|received)`)
	confirmedPattern   = regexp.MustCompile(`cleaner (confirmed|accepted)|accepted`)
	completedPattern   = regexp.MustCompile(`completed|finished`)
	declinedPattern    = regexp.MustCompile(`rejected|declined`)
	cancelledPattern   = regexp.MustCompile(`cancelled|canceled|cancel`)
	createdPattern     = regexp.MustCompile(`created|booked|requested`)
	rescheduledPattern = regexp.MustCompile(`rescheduled|reschedule|time change|updated`)
)

// Classify converts an arbitrary notification payload into a Notification. It is
// total: any input, including nil, yields a record with a valid category.
func Classify(raw map[string]any) Notification {
	hint := RawHint(raw)
	category := CategoryFromHint(hint)
	actor := ActorName(raw)
	target := ExtractTarget(raw)
	category = ApplyTargetOverride(category, target)
	category = ApplyTextHeuristic(category, raw, hint)

	createdRaw := firstString(raw, createdAtFields...)
	signals := DetectBookingSignals(raw, hint)
	targetTitle := firstString(raw, targetTitleFields...)
	icon := IconFor(category)

	return Notification{
		ID:           firstString(raw, idFields...),
		Category:     category,
		Type:         category.Label(),
		TypeRaw:      hint,
		Title:        SynthesizeTitle(raw, category, targetTitle, signals),
		Message:      SynthesizeMessage(raw, category, actor, targetTitle, signals),
		CreatedAt:    ParseTime(createdRaw),
		CreatedAtRaw: createdRaw,
		IsRead:       readState(raw),
		Target:       target,
		ActorName:    actor,
		TargetTitle:  targetTitle,
		MessageID:    firstString(raw, messageIDFields...),
		Icon:         icon.Name,
		IconColor:    icon.Color,
		IconBg:       icon.Bg,
		Raw:          raw,
	}
}

// ClassifyAll classifies a list of payloads preserving order.
func ClassifyAll(items []map[string]any) []Notification {
	out := make([]Notification, 0, len(items))
	for _, item := range items {
		out = append(out, Classify(item))
	}
	return out
}

// RawHint extracts the free-text type hint, defaulting to "alert".
func RawHint(raw map[string]any) string {
	if hint := firstString(raw, hintFields...); hint != "" {
		return hint
	}
	return string(CategoryAlert)
}

// CategoryFromHint upgrades a raw hint to a category by case-insensitive keyword match.
func CategoryFromHint(hint string) Category {
	lower := strings.ToLower(hint)
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(lower) {
			return rule.category
		}
	}
	return CategoryAlert
}

// ActorName finds who caused the notification, falling back to parsing
// "X sent you a message" out of the verb.
func ActorName(raw map[string]any) string {
	if actor := strings.TrimSpace(firstString(raw, actorFields...)); actor != "" {
		return actor
	}
	if verb, ok := lookup(raw, "verb"); ok {
		if s, ok := verb.(string); ok {
			if m := sentMessagePattern.FindStringSubmatch(s); len(m) > 1 {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return ""
}

// ExtractTarget reads an explicit target object, then explicit type/id fields, then
// infers the type from booking_id, job_id or chat_id. Any truthy target value,
// even an empty object, is explicit and disables the fallbacks. It returns nil
// when nothing identifies a target.
func ExtractTarget(raw map[string]any) *Target {
	if explicit, ok := lookup(raw, "target"); ok && truthy(explicit) {
		m, _ := explicit.(map[string]any)
		return &Target{
			Type: strings.TrimSpace(firstString(m, "type")),
			ID:   firstString(m, "id"),
		}
	}

	target := &Target{
		Type: firstString(raw, targetTypeFields...),
		ID:   firstString(raw, targetIDFields...),
	}
	if target.Type == "" {
		switch {
		case firstTruthy(raw, "booking_id"):
			target.Type = "booking"
		case firstTruthy(raw, "job_id"):
			target.Type = "job"
		case firstTruthy(raw, "chat_id"):
			target.Type = "chat"
		}
	}
	if target.Type == "" && target.ID == "" {
		return nil
	}
	return target
}

// ApplyTargetOverride lets an unambiguous target type win over the keyword guess.
func ApplyTargetOverride(category Category, target *Target) Category {
	if target == nil {
		return category
	}
	switch strings.ToLower(target.Type) {
	case "booking":
		return CategoryBooking
	case "chat":
		return CategoryMessage
	case "job":
		return CategoryJob
	}
	return category
}

// ApplyTextHeuristic forces booking when the human text talks about bookings or
// payments, unless the notification is already a message.
func ApplyTextHeuristic(category Category, raw map[string]any, hint string) Category {
	if category == CategoryMessage {
		return category
	}
	if bookingTextPattern.MatchString(searchableText(raw, hint)) {
		return CategoryBooking
	}
	return category
}

func searchableText(raw map[string]any, hint string) string {
	parts := make([]string, 0, len(searchFields)+1)
	for _, field := range searchFields {
		if s := firstString(raw, field); s != "" {
			parts = append(parts, s)
		}
	}
	if hint != "" {
		parts = append(parts, hint)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// BookingSignals are the status/event facts used to word booking notifications.
type BookingSignals struct {
	Paid        bool
	Confirmed   bool
	Completed   bool
	Declined    bool
	Cancelled   bool
	Created     bool
	Rescheduled bool
}

// DetectBookingSignals inspects status codes and event strings.
func DetectBookingSignals(raw map[string]any, hint string) BookingSignals {
	status := strings.ToLower(firstString(raw, statusFields...))
	event := firstString(raw, eventFields...)
	if event == "" {
		event = hint
	}
	event = strings.ToLower(event)

	paymentStatus, _ := lookup(raw, "payment_status")

	return BookingSignals{
		Paid:        firstTruthy(raw, "paid", "booking.paid_at") || paymentStatus == "paid" || paidPattern.MatchString(event),
		Confirmed:   firstTruthy(raw, "cleaner_confirmed") || status == "cf" || confirmedPattern.MatchString(event),
		Completed:   status == "cp" || completedPattern.MatchString(event),
		Declined:    status == "rj" || declinedPattern.MatchString(event),
		Cancelled:   status == "canceled" || cancelledPattern.MatchString(event),
		Created:     createdPattern.MatchString(event),
		Rescheduled: rescheduledPattern.MatchString(event),
	}
}

// SynthesizeTitle keeps a server title and otherwise words one from the category.
func SynthesizeTitle(raw map[string]any, category Category, targetTitle string, s BookingSignals) string {
	if title := firstString(raw, titleFields...); title != "" {
		return title
	}

	withTarget := func(format, fallback string) string {
		if targetTitle == "" {
			return fallback
		}
		return fmt.Sprintf(format, targetTitle)
	}

	switch category {
	case CategoryMessage:
		return "New message"
	case CategoryJob:
		return withTarget("Job update: %s", "Job update")
	case CategoryBooking:
		switch {
		case s.Paid:
			return withTarget("Payment received for %s", "Payment received for booking")
		case s.Confirmed:
			return withTarget("Cleaner confirmed %s", "Cleaner confirmed booking")
		case s.Completed:
			return withTarget("%s completed", "Booking completed")
		case s.Declined:
			return withTarget("Cleaner declined %s", "Booking declined")
		case s.Cancelled:
			return withTarget("%s cancelled", "Booking cancelled")
		case s.Created:
			return "Booking request"
		case s.Rescheduled:
			return withTarget("Booking rescheduled: %s", "Booking rescheduled")
		}
		return withTarget("Booking update: %s", "Booking update")
	}
	return "Notification"
}

// SynthesizeMessage builds the body shown under the title. Message notifications
// always use the same "{actor} sent you a message: {snippet}" wording.
func SynthesizeMessage(raw map[string]any, category Category, actor, targetTitle string, s BookingSignals) string {
	body := firstString(raw, bodyFields...)

	switch category {
	case CategoryMessage:
		return MessageSummary(actor, body)
	case CategoryBooking:
		switch {
		case body != "":
			return body
		case s.Paid:
			if targetTitle != "" {
				return fmt.Sprintf("Payment received for %q.", targetTitle)
			}
			return "Payment received for booking."
		case s.Confirmed:
			if targetTitle != "" {
				return fmt.Sprintf("Cleaner confirmed %s.", targetTitle)
			}
			return "Cleaner confirmed your booking."
		case s.Created:
			if targetTitle != "" {
				who := actor
				if who == "" {
					who = "A user"
				}
				return fmt.Sprintf("%s requested to book you for '%s'.", who, targetTitle)
			}
			return "Booking request received."
		}
		if targetTitle != "" {
			return fmt.Sprintf("Update for %s.", targetTitle)
		}
		return "Booking update available."
	}

	if body != "" {
		return body
	}
	return "Tap to view details"
}

// MessageSummary renders the chat notification line from an actor and a raw body.
func MessageSummary(actor, body string) string {
	summary := "You have a new message"
	if actor != "" {
		summary = actor + " sent you a message"
	}
	if snippet := Snippet(body); snippet != "" {
		summary += ": " + snippet
	}
	return summary
}

// Snippet trims the body and keeps at most the first 120 characters.
func Snippet(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return body
}

func readState(raw map[string]any) bool {
	if v, ok := lookup(raw, "is_read"); ok {
		return truthy(v)
	}
	if v, ok := lookup(raw, "read"); ok {
		return truthy(v)
	}
	if v, ok := lookup(raw, "unread"); ok {
		return !truthy(v)
	}
	return false
}
