package realtime

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/notify"
	"github.com/charlesng35/tidylink/pkg/logger"
	"github.com/charlesng35/tidylink/pkg/metrics"
)

// Frame types pushed on the notification socket.
const (
	FrameNotification        = "notification"
	FrameNewNotification     = "new_notification"
	FrameNotificationCreated = "notification_created"
)

const notificationLabel = "notification socket"

// NotificationSink receives pushed notification payloads.
// *inbox.NotificationService satisfies it.
type NotificationSink interface {
	Ingest(raw map[string]any) notify.Notification
}

// ConnectNotifications opens the session's notification socket. It shares the
// chat socket lifecycle: the same token rules, keepalive, reconnect policy and
// normal closure on Disconnect.
func ConnectNotifications(ctx context.Context, cfg Config, sink NotificationSink, token string) (*Client, error) {
	log := logger.WithModule("realtime").With(zap.String("channel", "notifications"))

	token = strings.TrimSpace(token)
	if token == "" {
		log.Warn(notificationLabel + " not opened: missing auth token")
		metrics.RealtimeConnections.WithLabelValues("skipped").Inc()
		return nil, ErrMissingToken
	}
	if sink == nil {
		return nil, errors.New("realtime: notification sink is required")
	}
	if err := checkExpiry(cfg, token, notificationLabel, log); err != nil {
		return nil, err
	}

	target, err := NotificationsURL(cfg.BaseURL, token)
	if err != nil {
		return nil, err
	}

	c := newClient(cfg, target, notificationLabel, log)
	c.route = func(frame Frame) { c.routeNotificationFrame(sink, frame) }
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) routeNotificationFrame(sink NotificationSink, frame Frame) {
	switch kind := frame.Type(); kind {
	case FrameConnected, FrameConnection, FramePing, FramePong:
		metrics.RealtimeFrames.WithLabelValues("ignored").Inc()
	case FrameError:
		c.errorFrame(frame)
	case FrameNotification, FrameNewNotification, FrameNotificationCreated, "":
		c.ingest(sink, notificationPayload(frame))
	default:
		// A flat notification keeps its own type ("alert", "booking", ...).
		if frame.String("id", "pk", "uuid", "notification_id") != "" {
			c.ingest(sink, notificationPayload(frame))
			return
		}
		metrics.RealtimeFrames.WithLabelValues("ignored").Inc()
		c.log.Debug("unhandled notification frame type", zap.String("type", kind))
	}
}

func (c *Client) ingest(sink NotificationSink, raw map[string]any) {
	if len(raw) == 0 {
		metrics.RealtimeFrames.WithLabelValues("invalid").Inc()
		return
	}
	metrics.RealtimeFrames.WithLabelValues("notification").Inc()
	n := sink.Ingest(raw)
	c.log.Debug("notification pushed",
		zap.String("notification_id", n.ID),
		zap.String("category", string(n.Category)),
	)
}

// notificationPayload unwraps {"type":..., "notification":{...}} envelopes. A flat
// frame is the notification itself, minus the envelope type so it does not
// shadow the notification's own kind.
func notificationPayload(frame Frame) map[string]any {
	for _, key := range []string{"notification", "data", "payload"} {
		if nested, ok := frame[key].(map[string]any); ok {
			return nested
		}
	}

	raw := make(map[string]any, len(frame))
	for k, v := range frame {
		if k == "type" && isEnvelopeType(frame.Type()) {
			continue
		}
		raw[k] = v
	}
	return raw
}

func isEnvelopeType(kind string) bool {
	switch kind {
	case FrameNotification, FrameNewNotification, FrameNotificationCreated:
		return true
	}
	return false
}
