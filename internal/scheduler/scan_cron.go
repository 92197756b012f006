package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alertme/alertme/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpiredPurger removes stale delivery-ledger entries.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) error
}

// StartScanCronJobs registers one cron entry per configured HH:MM scan time
// plus a nightly purge of expired delivery records, then starts the cron.
// The scanner itself refuses overlapping runs, so a slow scan straddling
// the next trigger is skipped rather than doubled.
func StartScanCronJobs(scanner *services.ScannerService, deliveries ExpiredPurger, scanTimes []string) (*cron.Cron, error) {
	c := cron.New()

	for _, scanTime := range scanTimes {
		spec, err := cronSpec(scanTime)
		if err != nil {
			return nil, fmt.Errorf("invalid scan time %q: %v", scanTime, err)
		}

		if _, err := c.AddFunc(spec, func() {
			if _, err := scanner.Scan(context.Background()); err != nil {
				if errors.Is(err, services.ErrScanInFlight) {
					logrus.Warn("Skipping scheduled scan: previous scan still running")
					return
				}
				logrus.WithError(err).Error("Scheduled deadline scan failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule scan at %s: %v", scanTime, err)
		}
	}

	// Purge expired ledger entries once a day, off the scan hours
	c.AddFunc("0 3 * * *", func() {
		if err := deliveries.DeleteExpired(context.Background()); err != nil {
			logrus.WithError(err).Error("Failed to purge expired delivery records")
		}
	})

	c.Start()
	logrus.WithField("scanTimes", scanTimes).Info("Deadline scan cron started")
	return c, nil
}

// cronSpec converts an HH:MM wall-clock time into a daily cron expression.
func cronSpec(scanTime string) (string, error) {
	t, err := time.Parse("15:04", scanTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
