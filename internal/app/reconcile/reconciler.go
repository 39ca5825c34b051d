package reconcile

import (
	"context"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/store"
	"github.com/charlesng35/tidylink/pkg/logger"
)

const (
	defaultUnreadSpec = "@every 1m"
	defaultTimeout    = 30 * time.Second
)

// CounterRefresher re-reads the unread counters from the server.
type CounterRefresher interface {
	RefreshCounters(ctx context.Context) error
}

// NotificationFetcher reloads the notification list from the server.
type NotificationFetcher interface {
	Fetch(ctx context.Context, params url.Values) (store.NotificationPage, error)
}

// Reconciler periodically replaces locally adjusted state with the server's
// authoritative values. Optimistic decrements drift when other devices read
// messages; each run overwrites them.
type Reconciler struct {
	counters      CounterRefresher
	notifications NotificationFetcher
	cron          *cron.Cron
	log           *zap.Logger
	timeout       time.Duration

	unreadSchedule       string
	notificationSchedule string
}

// Option customises the Reconciler.
type Option func(*Reconciler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reconciler) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithUnreadSchedule overrides the cron expression for the counter refresh.
func WithUnreadSchedule(spec string) Option {
	return func(r *Reconciler) {
		if spec != "" {
			r.unreadSchedule = spec
		}
	}
}

// WithNotificationSchedule enables the periodic notification list reload.
func WithNotificationSchedule(spec string) Option {
	return func(r *Reconciler) {
		r.notificationSchedule = spec
	}
}

// WithTimeout bounds each scheduled run.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New constructs a Reconciler. A nil dependency skips its job.
func New(counters CounterRefresher, notifications NotificationFetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		counters:       counters,
		notifications:  notifications,
		timeout:        defaultTimeout,
		unreadSchedule: defaultUnreadSpec,
		log:            logger.WithModule("reconcile"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return r
}

// Start registers the jobs and launches the scheduler.
func (r *Reconciler) Start() error {
	if r.counters != nil {
		if _, err := r.cron.AddFunc(r.unreadSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if err := r.counters.RefreshCounters(ctx); err != nil {
				r.log.Warn("unread refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if r.notifications != nil && r.notificationSchedule != "" {
		if _, err := r.cron.AddFunc(r.notificationSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if _, err := r.notifications.Fetch(ctx, nil); err != nil {
				r.log.Warn("notification refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (r *Reconciler) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes every configured refresh sequentially.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if r.counters != nil {
		errs = multierr.Append(errs, r.counters.RefreshCounters(ctx))
	}

	if r.notifications != nil && r.notificationSchedule != "" {
		if _, err := r.notifications.Fetch(ctx, nil); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
