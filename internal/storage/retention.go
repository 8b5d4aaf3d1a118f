// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"

	"github.com/meshtastic/meshwatch/internal/log"
)

// retainedTables are swept by age; traceroutes age out with positions
// since both are diagnostic and cheap to re-derive.
var retainedTables = []string{"positions", "telemetry", "messages", "traceroutes"}

// vacuumThreshold is the row count above which a sweep triggers a
// VACUUM to reclaim freed pages.
const vacuumThreshold = 1000

// Retention runs a daily sweep that deletes rows older than a
// configured age and reclaims space once enough rows have gone.
type Retention struct {
	db            *sqlx.DB
	retentionDays int
	scheduler     gocron.Scheduler
}

// NewRetention builds a Retention sweeper over db. retentionDays <= 0
// disables the sweep entirely (Start becomes a no-op).
func NewRetention(db *sqlx.DB, retentionDays int) (*Retention, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Retention{db: db, retentionDays: retentionDays, scheduler: s}, nil
}

// Start registers the daily sweep at 03:00 local time and starts the
// scheduler. A non-positive retention window disables the sweep.
func (r *Retention) Start() error {
	if r.retentionDays <= 0 {
		log.Info("storage: retention disabled (retention-days <= 0)")
		return nil
	}

	_, err := r.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(r.sweep),
	)
	if err != nil {
		return fmt.Errorf("register retention job: %w", err)
	}

	r.scheduler.Start()
	return nil
}

// Stop shuts down the scheduler. It does not wait for an in-flight
// sweep to finish beyond gocron's own shutdown grace period.
func (r *Retention) Stop() {
	_ = r.scheduler.Shutdown()
}

// Sweep runs the deletion pass immediately, outside the schedule; the
// daily job and any manual/test invocation both funnel through here.
func (r *Retention) Sweep() {
	r.sweep()
}

func (r *Retention) sweep() {
	cutoff := time.Now().AddDate(0, 0, -r.retentionDays).UnixMilli()

	var removed int64
	for _, table := range retainedTables {
		res, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", table), cutoff)
		if err != nil {
			log.Errorf("storage: retention sweep of %s failed: %v", table, err)
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			continue
		}
		if n > 0 {
			log.Infof("storage: retention removed %d rows from %s", n, table)
		}
		removed += n
	}

	if removed > vacuumThreshold {
		log.Infof("storage: retention removed %d rows total, running VACUUM", removed)
		if _, err := r.db.Exec("VACUUM"); err != nil {
			log.Errorf("storage: vacuum failed: %v", err)
		}
	}
}
