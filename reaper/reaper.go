// Package reaper deletes provider instances that have outlived a threshold,
// whether or not the session that created them is still around.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/provider"
	"github.com/sirupsen/logrus"
)

// Report lists instance names by what happened to them.
type Report struct {
	Deleted []string
	// Absent instances were listed but already gone when deleted.
	Absent []string
	Failed []string
}

type Reaper struct {
	provider provider.Provider
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(p provider.Provider, log logrus.FieldLogger) *Reaper {
	return &Reaper{
		provider: p,
		log:      log,
		now:      time.Now,
	}
}

// PurgeOlderThan deletes every instance created at or before now-threshold and
// returns how many it deleted. A failed deletion is logged and the purge carries
// on with the remaining instances; only a failure to list instances is returned.
func (r *Reaper) PurgeOlderThan(ctx context.Context, threshold time.Duration) (int, error) {
	report, err := r.Purge(ctx, threshold)
	return len(report.Deleted), err
}

// Purge is PurgeOlderThan with the full outcome.
func (r *Reaper) Purge(ctx context.Context, threshold time.Duration) (Report, error) {

	var report Report

	if threshold < 0 {
		return report, failure.Config("purging servers", fmt.Errorf("negative threshold %s", threshold))
	}

	instances, err := r.provider.ListInstances(ctx)
	if err != nil {
		return report, failure.Provision("listing servers", err)
	}

	cutoff := r.now().Add(-threshold)
	r.log.Debugf("Purging servers created at or before %s", cutoff.Format(time.RFC3339))

	for _, instance := range instances {
		if instance.CreatedAt.After(cutoff) {
			continue
		}

		log := r.log.WithField("server", instance.Name)
		log.Infof("Deleting server created %s", instance.CreatedAt.Format(time.RFC3339))

		err := r.provider.DeleteInstance(ctx, instance.Name)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, instance.Name)
		case errors.Is(err, provider.ErrNotFound):
			log.Debug("Server already gone")
			report.Absent = append(report.Absent, instance.Name)
		default:
			log.WithError(err).Error("Failed to delete server")
			report.Failed = append(report.Failed, instance.Name)
		}

		if ctx.Err() != nil {
			return report, failure.Provision("purging servers", ctx.Err())
		}
	}

	r.log.Infof("Deleted %d servers (%d already gone, %d failed)", len(report.Deleted), len(report.Absent), len(report.Failed))

	return report, nil
}
