// Package jobs runs the daily background tasks. None of them touch sessions.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"reportit/services"
)

type Digester interface {
	TimeDigest(ctx context.Context) ([]services.DigestLine, error)
}

type DigestSender interface {
	Digest(day string, lines []services.DigestLine)
}

type Snapshotter interface {
	Snapshot(ctx context.Context, day time.Time) (string, error)
}

type Runner struct {
	digests   Digester
	sender    DigestSender
	snapshots Snapshotter
	loc       *time.Location
	log       *zap.Logger
	now       func() time.Time
}

func NewRunner(digests Digester, sender DigestSender, snapshots Snapshotter, loc *time.Location, log *zap.Logger) *Runner {
	return &Runner{digests: digests, sender: sender, snapshots: snapshots, loc: loc, log: log, now: time.Now}
}

// SendDigest mails the per-user minute totals to the admins.
func (r *Runner) SendDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	lines, err := r.digests.TimeDigest(ctx)
	if err != nil {
		r.log.Error("time digest failed", zap.Error(err))
		return
	}
	day := r.now().In(r.loc).Format("2006-01-02")
	r.sender.Digest(day, lines)
	r.log.Info("time digest sent", zap.String("day", day), zap.Int("users", len(lines)))
}

// SnapshotReports stores the day's report workbook.
func (r *Runner) SnapshotReports() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key, err := r.snapshots.Snapshot(ctx, r.now())
	if err != nil {
		r.log.Error("report snapshot failed", zap.Error(err))
		return
	}
	r.log.Info("report snapshot stored", zap.String("key", key))
}

// Start schedules both jobs daily at at ("HH:MM") and runs the scheduler in
// the background. Stop the returned scheduler on shutdown.
func (r *Runner) Start(at string) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(r.loc)
	if _, err := s.Every(1).Day().At(at).Do(r.SendDigest); err != nil {
		return nil, err
	}
	if _, err := s.Every(1).Day().At(at).Do(r.SnapshotReports); err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}
