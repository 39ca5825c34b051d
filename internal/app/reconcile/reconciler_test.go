package reconcile

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/charlesng35/tidylink/internal/store"
)

type stubCounters struct {
	calls atomic.Int32
	err   error
}

func (s *stubCounters) RefreshCounters(context.Context) error {
	s.calls.Add(1)
	return s.err
}

type stubFetcher struct {
	calls atomic.Int32
	err   error
}

func (s *stubFetcher) Fetch(context.Context, url.Values) (store.NotificationPage, error) {
	s.calls.Add(1)
	return store.NotificationPage{}, s.err
}

func TestRunOnceAggregatesErrors(t *testing.T) {
	counters := &stubCounters{err: errors.New("counters down")}
	fetcher := &stubFetcher{err: errors.New("list down")}

	r := New(counters, fetcher, WithNotificationSchedule("@every 5m"))
	err := r.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Equal(t, int32(1), counters.calls.Load())
	require.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRunOnceSkipsUnscheduledNotifications(t *testing.T) {
	counters := &stubCounters{}
	fetcher := &stubFetcher{}

	r := New(counters, fetcher)
	require.NoError(t, r.RunOnce(context.Background()))
	require.Equal(t, int32(1), counters.calls.Load())
	require.Zero(t, fetcher.calls.Load())
}

func TestRunOnceWithoutDependencies(t *testing.T) {
	require.NoError(t, New(nil, nil).RunOnce(context.Background()))
}

func TestStartRunsScheduledJobs(t *testing.T) {
	counters := &stubCounters{}
	fetcher := &stubFetcher{}

	c := cron.New(cron.WithSeconds(), cron.WithLogger(cron.DiscardLogger))
	r := New(counters, fetcher,
		WithCron(c),
		WithUnreadSchedule("@every 1s"),
		WithNotificationSchedule("@every 1s"),
		WithTimeout(time.Second),
	)
	require.NoError(t, r.Start())
	t.Cleanup(func() { <-r.Stop().Done() })

	require.Eventually(t, func() bool {
		return counters.calls.Load() > 0 && fetcher.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := New(&stubCounters{}, nil, WithUnreadSchedule("not a schedule"))
	require.Error(t, r.Start())
}
