package monitoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/realtime"
)

const defaultDatabaseTimeout = 2 * time.Second

// DatabaseCheck pings the database handle.
func DatabaseCheck(db *gorm.DB, timeout time.Duration) Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}
	return NewCheck("database", func(ctx context.Context) CheckResult {
		start := time.Now()
		if db == nil {
			return CheckResult{Status: StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError(err, time.Since(start))
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ResultFromError(sqlDB.PingContext(pingCtx), time.Since(start))
	})
}

// HubCheck reports the chat hub's rooms and peers. Peers dropped for
// backpressure since the previous check degrade the result.
func HubCheck(hub *realtime.Hub) Check {
	var lastDropped atomic.Uint64
	return NewCheck("realtime", func(context.Context) CheckResult {
		if hub == nil {
			return CheckResult{Status: StatusDegraded, Details: "realtime hub unavailable"}
		}

		stats := hub.Stats()
		result := CheckResult{
			Status:  StatusUp,
			Details: fmt.Sprintf("%d rooms, %d peers", stats.Rooms, stats.Peers),
		}
		if prev := lastDropped.Swap(stats.Dropped); stats.Dropped > prev {
			result.Status = StatusDegraded
			result.Details += fmt.Sprintf(", %d dropped", stats.Dropped-prev)
		}
		return result
	})
}
