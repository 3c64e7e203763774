package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/go-co-op/gocron"
)

// ScheduleRefreshExpiringCredentials initialises a gocron job that refreshes
// stored credential pairs whose access token expires within the margin. It
// blocks until the scheduler is stopped.
func ScheduleRefreshExpiringCredentials(
	ctx context.Context,
	coordinator *Coordinator,
	lister models.ExpiringCredentialLister,
	interval time.Duration,
	margin time.Duration,
) error {
	s := gocron.NewScheduler(time.UTC)
	job, err := s.Every(interval).Do(refreshExpiringCredentials, ctx, coordinator, lister, margin)
	if err != nil {
		slog.Error("starting gocron job failed", "error", err)
		return err
	}
	slog.Info("proactive refresh job starting", "job", job, "interval", interval, "margin", margin)
	s.StartBlocking()
	return nil
}

// refreshExpiringCredentials refreshes every credential pair expiring before
// now+margin. Failures of individual sessions do not stop the sweep: a
// terminal failure already tore that session down and a transient one will be
// retried on the next run or by the next 401.
func refreshExpiringCredentials(
	ctx context.Context,
	coordinator *Coordinator,
	lister models.ExpiringCredentialLister,
	margin time.Duration,
) {
	expiringIDs, err := lister.GetExpiringCredentialIDs(ctx, time.Now(), time.Now().Add(margin))
	if err != nil {
		slog.Error("GetExpiringCredentialIDs failed", "error", err)
		return
	}
	refreshed := 0
	for _, sessionID := range expiringIDs {
		_, err := coordinator.Refresh(ctx, sessionID)
		if err != nil {
			slog.Error("proactive refresh failed", "error", err, "sessionID", sessionID)
			continue
		}
		refreshed++
	}
	slog.Info(
		"proactive refresh sweep done",
		"expiring", len(expiringIDs),
		"refreshed", refreshed,
	)
}
