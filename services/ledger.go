package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/metrics"
	"reportit/models"
	"reportit/store"
)

type LedgerStore interface {
	store.SessionStore
	store.TimeStore
}

// Ledger turns the elapsed time of server-side sessions into per-user
// minute totals.
type Ledger struct {
	store LedgerStore
	log   *zap.Logger
	now   func() time.Time
}

func NewLedger(s LedgerStore, log *zap.Logger) *Ledger {
	return &Ledger{store: s, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CommitElapsedTime closes every valid session of the user, expired ones
// included, and adds each session's whole elapsed minutes to the user's
// total. A session is counted only by the caller that flips it to invalid,
// so concurrent commits never count it twice. Failures on one session do
// not stop the others; the joined error is returned with the minutes that
// were added.
func (l *Ledger) CommitElapsedTime(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	sessions, err := l.store.ListValidSessions(ctx, userID)
	if err != nil {
		metrics.CommitFailures.Inc()
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	now := l.now()
	var total int64
	var errs []error
	for _, s := range sessions {
		won, err := l.store.InvalidateSession(ctx, s.ID)
		if err != nil {
			metrics.CommitFailures.Inc()
			errs = append(errs, fmt.Errorf("invalidate session %s: %w", s.ID.Hex(), err))
			continue
		}
		if !won {
			continue
		}

		minutes := elapsedMinutes(s.CreatedAt, now)
		if err := l.store.AddMinutes(ctx, userID, minutes); err != nil {
			metrics.CommitFailures.Inc()
			errs = append(errs, fmt.Errorf("add %d minutes for session %s: %w", minutes, s.ID.Hex(), err))
			continue
		}
		total += minutes
		metrics.SessionsCommitted.Inc()
		metrics.MinutesCommitted.Add(float64(minutes))
	}
	return total, errors.Join(errs...)
}

func elapsedMinutes(from, to time.Time) int64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// StartSession opens a session valid for duration and makes sure the user
// has a time record. Other sessions of the user are left alone.
func (l *Ledger) StartSession(ctx context.Context, userID primitive.ObjectID, duration time.Duration) (*models.Session, error) {
	now := l.now()
	s := &models.Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
		Valid:     true,
	}
	if err := l.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := l.store.EnsureTimeSpent(ctx, userID); err != nil {
		l.log.Warn("ensure time record failed", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
	return s, nil
}

// QueryOnlineUsers returns the users holding a valid session that has not
// expired at now. It has no side effects.
func (l *Ledger) QueryOnlineUsers(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	return l.store.ActiveUserIDs(ctx, now)
}

// TotalMinutes is the user's committed time; zero when nothing was recorded.
func (l *Ledger) TotalMinutes(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	ts, err := l.store.FindTimeSpent(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ts.Minutes, nil
}
