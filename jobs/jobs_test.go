package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"reportit/services"
)

type fakeDigester struct {
	lines []services.DigestLine
	err   error
}

func (f fakeDigester) TimeDigest(ctx context.Context) ([]services.DigestLine, error) {
	return f.lines, f.err
}

type fakeSender struct {
	day   string
	lines []services.DigestLine
	calls int
}

func (f *fakeSender) Digest(day string, lines []services.DigestLine) {
	f.day, f.lines = day, lines
	f.calls++
}

type fakeSnapshots struct {
	day time.Time
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, day time.Time) (string, error) {
	f.day = day
	return "exports/x.xlsx", nil
}

func newRunner(d Digester, s DigestSender, snap Snapshotter) *Runner {
	r := NewRunner(d, s, snap, time.UTC, zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 6, 1, 23, 55, 0, 0, time.UTC) }
	return r
}

func TestSendDigest(t *testing.T) {
	sender := &fakeSender{}
	lines := []services.DigestLine{{Name: "alice", Minutes: 20}}
	newRunner(fakeDigester{lines: lines}, sender, &fakeSnapshots{}).SendDigest()
	if sender.calls != 1 || sender.day != "2024-06-01" || len(sender.lines) != 1 {
		t.Fatalf("sender = %+v", sender)
	}

	failing := &fakeSender{}
	newRunner(fakeDigester{err: errors.New("db down")}, failing, &fakeSnapshots{}).SendDigest()
	if failing.calls != 0 {
		t.Fatal("digest sent despite failure")
	}
}

func TestSnapshotReports(t *testing.T) {
	snap := &fakeSnapshots{}
	newRunner(fakeDigester{}, &fakeSender{}, snap).SnapshotReports()
	if snap.day.IsZero() {
		t.Fatal("snapshot not taken")
	}
}

func TestStartRejectsBadTime(t *testing.T) {
	r := newRunner(fakeDigester{}, &fakeSender{}, &fakeSnapshots{})
	if _, err := r.Start("25:99"); err == nil {
		t.Fatal("expected error for invalid time")
	}
	s, err := r.Start("23:55")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if len(s.Jobs()) != 2 {
		t.Fatalf("jobs = %d", len(s.Jobs()))
	}
}
